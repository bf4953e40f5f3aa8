// Package reminder sends a message shortly before scheduled items start.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// EveryMinute is the default cron spec for reminder checks.
const EveryMinute = "* * * * *"

// Notifier delivers a reminder to a Telegram chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// Options configures a Service.
type Options struct {
	Lead     time.Duration
	Spec     string
	Location *time.Location
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service checks for upcoming items on a cron schedule.
type Service struct {
	store    schedule.Store
	notifier Notifier
	lead     time.Duration
	spec     string
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]string // item|date -> date
	cron *cron.Cron
}

// New creates a reminder Service.
func New(store schedule.Store, notifier Notifier, opts Options) *Service {
	s := &Service{
		store:    store,
		notifier: notifier,
		lead:     opts.Lead,
		spec:     opts.Spec,
		loc:      opts.Location,
		logger:   opts.Logger,
		now:      opts.Now,
		sent:     make(map[string]string),
	}
	if s.spec == "" {
		s.spec = EveryMinute
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Start schedules the check and returns immediately.
func (s *Service) Start() error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("scheduling reminders %q: %w", s.spec, err)
	}
	s.cron = c
	c.Start()
	s.logger.Info("reminders started", zap.String("spec", s.spec), zap.Duration("lead", s.lead))
	return nil
}

// Stop halts the schedule and waits for a running check, or ctx.
func (s *Service) Stop(ctx context.Context) {
	if s.cron == nil {
		return
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
	defer cancel()
	if _, err := s.Tick(ctx, s.now()); err != nil {
		s.logger.Error("reminder check failed", zap.Error(err))
	}
}

// Tick sends reminders for items starting in the minute that begins at
// now+lead, and returns how many were sent. Each occurrence is reminded once.
func (s *Service) Tick(ctx context.Context, now time.Time) (int, error) {
	at := now.In(s.loc).Add(s.lead).Truncate(time.Minute)
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, s.loc)
	key := day.Format(schedule.DateLayout)
	clock := at.Format(schedule.TimeLayout)

	stored, err := s.store.ListItemsOnDate(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("listing items: %w", err)
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	items, err = recur.Expand(items, day, day)
	if err != nil {
		s.logger.Warn("skipping invalid recurrence", zap.Error(err))
	}

	s.prune(key)

	sent := 0
	for i := range items {
		it := &items[i]
		if it.Date != key || it.StartTime != clock || (it.IsTask() && it.Completed) {
			continue
		}
		if !s.claim(it.ID, key) {
			continue
		}

		user, err := s.store.GetUser(ctx, it.UserID)
		if err != nil {
			s.logger.Warn("reminder owner lookup failed", zap.String("item_id", it.ID), zap.Error(err))
			continue
		}
		if user.ChatID == 0 {
			continue
		}

		if err := s.notifier.Notify(ctx, user.ChatID, Message(it, s.lead)); err != nil {
			s.release(it.ID, key)
			s.logger.Warn("reminder delivery failed",
				zap.String("item_id", it.ID),
				zap.String("user_id", it.UserID),
				zap.Error(err))
			continue
		}
		sent++
		s.logger.Debug("reminder sent", zap.String("item_id", it.ID), zap.String("date", key))
	}
	return sent, nil
}

func (s *Service) claim(id, date string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := id + "|" + date
	if _, ok := s.sent[k]; ok {
		return false
	}
	s.sent[k] = date
	return true
}

func (s *Service) release(id, date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sent, id+"|"+date)
}

// prune forgets occurrences before date.
func (s *Service) prune(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, d := range s.sent {
		if d < date {
			delete(s.sent, k)
		}
	}
}

// Message formats the reminder text for an item.
func Message(it *schedule.Item, lead time.Duration) string {
	kind := "Event"
	if it.IsTask() {
		kind = "Task"
	}
	if lead <= 0 {
		return fmt.Sprintf("⏰ %s starting now: %s (%s-%s)", kind, it.Title, it.StartTime, it.EndTime)
	}
	return fmt.Sprintf("⏰ %s in %d min: %s (%s-%s)", kind, int(lead.Minutes()), it.Title, it.StartTime, it.EndTime)
}
