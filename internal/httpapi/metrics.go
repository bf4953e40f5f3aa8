package httpapi

import (
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var (
	// RequestsTotal counts requests.
	// Labels: method, route (the registered path, e.g. /api/v1/items/:id), status
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoflow",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration tracks request latency.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "chronoflow",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamClients is the number of open schedule streams.
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "chronoflow",
			Subsystem: "http",
			Name:      "schedule_streams",
			Help:      "Number of open schedule event streams",
		},
	)

	// AssistantRequestsTotal counts assistant chats.
	// Labels: result (success, error, rate_limited)
	AssistantRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoflow",
			Subsystem: "assistant",
			Name:      "requests_total",
			Help:      "Total assistant chat requests by result",
		},
		[]string{"result"},
	)
)

func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			RequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			RequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// limiterSet hands out one token bucket per user.
type limiterSet struct {
	limit rate.Limit
	burst int

	mu sync.Mutex
	m  map[string]*rate.Limiter
}

// newLimiterSet allows perMinute requests per user; zero or less disables limiting.
func newLimiterSet(perMinute int) *limiterSet {
	ls := &limiterSet{limit: rate.Inf, burst: 1, m: make(map[string]*rate.Limiter)}
	if perMinute > 0 {
		ls.limit = rate.Every(time.Minute / time.Duration(perMinute))
		ls.burst = perMinute
	}
	return ls
}

func (ls *limiterSet) allow(userID string) bool {
	ls.mu.Lock()
	l, ok := ls.m[userID]
	if !ok {
		l = rate.NewLimiter(ls.limit, ls.burst)
		ls.m[userID] = l
	}
	ls.mu.Unlock()
	return l.Allow()
}
