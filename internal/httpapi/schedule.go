package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/auth"
	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/display"
	"github.com/chronoflow/chronoflow/internal/feed"
	"github.com/chronoflow/chronoflow/internal/ics"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// maxExportDays bounds GET /export.ics ranges.
const maxExportDays = 366

// ScheduleResponse is the response body for GET /api/v1/schedule and the
// data of each stream event.
type ScheduleResponse struct {
	Start string          `json:"start"`
	End   string          `json:"end"`
	Days  display.Buckets `json:"days"`
}

// visibleRange reads ?start=YYYY-MM-DD&days=N. Without start the range
// begins on Monday of the current week.
func (s *Server) visibleRange(c echo.Context) ([]time.Time, error) {
	n := s.visibleDays
	if v := c.QueryParam("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 || d > MaxVisibleDays {
			return nil, echo.NewHTTPError(http.StatusBadRequest,
				fmt.Sprintf("days must be between 1 and %d", MaxVisibleDays))
		}
		n = d
	}

	var start time.Time
	if v := c.QueryParam("start"); v != "" {
		t, err := time.Parse(schedule.DateLayout, v)
		if err != nil {
			return nil, dateutil.ErrInvalidDateFormat
		}
		start = t
	} else {
		today := s.now().In(s.loc)
		monday, _ := dateutil.WeekRange(today)
		start = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
	}
	return dateutil.VisibleDays(start, n, MaxVisibleDays), nil
}

// buildSchedule loads, expands and buckets userID's items for days.
func (s *Server) buildSchedule(ctx context.Context, userID string, days []time.Time) (*ScheduleResponse, error) {
	first, last := days[0], days[len(days)-1]
	stored, err := s.items.ListItemsByDateRange(ctx, userID, first, last)
	if err != nil {
		return nil, err
	}

	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	items, err = recur.Expand(items, first, last)
	if err != nil {
		s.logger.Warn("skipping invalid recurrence", zap.String("user_id", userID), zap.Error(err))
	}

	return &ScheduleResponse{
		Start: dateutil.Key(first),
		End:   dateutil.Key(last),
		Days:  display.BucketForDisplay(items, days),
	}, nil
}

func (s *Server) handleSchedule(c echo.Context) error {
	days, err := s.visibleRange(c)
	if err != nil {
		return err
	}
	resp, err := s.buildSchedule(c.Request().Context(), auth.UserID(c), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// handleScheduleStream sends a "schedule" event with the bucketed range
// immediately and again after each burst of changes to the user's items.
func (s *Server) handleScheduleStream(c echo.Context) error {
	days, err := s.visibleRange(c)
	if err != nil {
		return err
	}
	userID := auth.UserID(c)
	ctx := c.Request().Context()

	events, unsubscribe := s.broker.Subscribe(userID)
	defer unsubscribe()
	changes := feed.Debounce(ctx, events, s.debounce)

	StreamClients.Inc()
	defer StreamClients.Dec()

	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)

	if err := s.writeSnapshot(c, userID, days); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			if err := s.writeSnapshot(c, userID, days); err != nil {
				return nil
			}
		case <-heartbeat.C:
			fmt.Fprint(c.Response(), ": heartbeat\n\n")
			c.Response().Flush()
		}
	}
}

func (s *Server) writeSnapshot(c echo.Context, userID string, days []time.Time) error {
	resp, err := s.buildSchedule(c.Request().Context(), userID, days)
	if err != nil {
		s.logger.Warn("schedule stream snapshot failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Response(), "event: schedule\ndata: %s\n\n", data)
	c.Response().Flush()
	return nil
}

func (s *Server) handleExport(c echo.Context) error {
	start := c.QueryParam("start")
	if start == "" {
		start = dateutil.Key(s.now().In(s.loc))
	}
	end := c.QueryParam("end")
	if end == "" {
		t, err := time.Parse(schedule.DateLayout, start)
		if err != nil {
			return dateutil.ErrInvalidDateFormat
		}
		end = dateutil.Key(t.AddDate(0, 0, 90))
	}

	rng, err := dateutil.NewDateRange(start, end)
	if err != nil {
		return err
	}
	if err := rng.Check(maxExportDays); err != nil {
		return err
	}

	stored, err := s.items.ListItemsByDateRange(c.Request().Context(), auth.UserID(c), rng.Start, rng.End)
	if err != nil {
		return err
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}

	body, err := ics.Export(items, s.loc)
	if err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="chronoflow.ics"`)
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}
