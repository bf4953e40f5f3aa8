package integration

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chronoflow/chronoflow/internal/db"
	"github.com/chronoflow/chronoflow/internal/display"
	"github.com/chronoflow/chronoflow/internal/feed"
	"github.com/chronoflow/chronoflow/internal/ics"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/reminder"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

// openRepo creates a fresh store for each test with automatic cleanup.
func openRepo(t *testing.T) *db.SQLite {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	repo, err := db.New(dbPath)
	if err != nil {
		t.Fatalf("failed to open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// mustParseDate parses a date string or fails the test.
func mustParseDate(t *testing.T, s string) time.Time {
	t.Helper()
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("failed to parse date %q: %v", s, err)
	}
	return date
}

// createUser registers a Telegram user with a known chat.
func createUser(t *testing.T, repo schedule.Store, telegramID, chatID int64) *schedule.User {
	t.Helper()
	ctx := context.Background()
	u := &schedule.User{TelegramID: telegramID, FirstName: "Ada", Username: "ada"}
	if err := repo.UpsertTelegramUser(ctx, u); err != nil {
		t.Fatalf("failed to upsert user: %v", err)
	}
	if chatID != 0 {
		if err := repo.SetChatID(ctx, u.ID, chatID); err != nil {
			t.Fatalf("failed to set chat: %v", err)
		}
	}
	return u
}

// createItem is a helper to create and insert an item.
func createItem(t *testing.T, repo schedule.Repository, userID string, typ schedule.ItemType, title, date, start, end string) *schedule.Item {
	t.Helper()
	it, err := schedule.New(userID, typ, title, date, start, end)
	if err != nil {
		t.Fatalf("failed to build item %q: %v", title, err)
	}
	if err := repo.CreateItem(context.Background(), it); err != nil {
		t.Fatalf("failed to create item %q: %v", title, err)
	}
	return it
}

// loadSchedule lists, expands and buckets a user's items over days.
func loadSchedule(t *testing.T, repo schedule.Repository, userID string, days []time.Time) display.Buckets {
	t.Helper()
	stored, err := repo.ListItemsByDateRange(context.Background(), userID, days[0], days[len(days)-1])
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	expanded, err := recur.Expand(items, days[0], days[len(days)-1])
	if err != nil {
		t.Fatalf("failed to expand: %v", err)
	}
	return display.BucketForDisplay(expanded, days)
}

func titles(items []display.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Title
	}
	return out
}

type notifier struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (n *notifier) Notify(_ context.Context, chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.sent == nil {
		n.sent = make(map[int64][]string)
	}
	n.sent[chatID] = append(n.sent[chatID], text)
	return nil
}

func (n *notifier) messages(chatID int64) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent[chatID]...)
}

// --- Store ---

func TestItemLifecycle(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	user := createUser(t, repo, 42, 4200)

	it := createItem(t, repo, user.ID, schedule.TypeTask, "Write report", "2025-05-01", "09:00", "10:30")
	if it.Duration != 90 {
		t.Errorf("duration: got %d, want 90", it.Duration)
	}

	got, err := repo.GetItem(ctx, user.ID, it.ID)
	if err != nil {
		t.Fatalf("failed to get item: %v", err)
	}
	if got.Title != "Write report" || got.StartTime != "09:00" || got.EndTime != "10:30" {
		t.Errorf("unexpected item: %+v", got)
	}

	if err := got.Apply(schedule.Patch{Date: strPtr("2025-05-02"), EndTime: strPtr("11:00")}); err != nil {
		t.Fatalf("failed to apply patch: %v", err)
	}
	if err := repo.UpdateItem(ctx, got); err != nil {
		t.Fatalf("failed to update item: %v", err)
	}
	moved, _ := repo.GetItem(ctx, user.ID, it.ID)
	if moved.Date != "2025-05-02" || moved.Duration != 120 {
		t.Errorf("moved item: got date %q duration %d", moved.Date, moved.Duration)
	}

	if err := repo.SetCompleted(ctx, user.ID, it.ID, true); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}
	done, _ := repo.GetItem(ctx, user.ID, it.ID)
	if !done.Completed {
		t.Error("expected item to be completed")
	}

	if err := repo.DeleteItem(ctx, user.ID, it.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := repo.GetItem(ctx, user.ID, it.ID); !errors.Is(err, schedule.ErrItemNotFound) {
		t.Errorf("expected ErrItemNotFound after delete, got %v", err)
	}
}

func TestUserIsolation(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	ada := createUser(t, repo, 1, 0)
	bob := createUser(t, repo, 2, 0)

	it := createItem(t, repo, ada.ID, schedule.TypeEvent, "Private", "2025-05-01", "09:00", "10:00")

	if _, err := repo.GetItem(ctx, bob.ID, it.ID); !errors.Is(err, schedule.ErrItemNotFound) {
		t.Errorf("GetItem by other user: got %v, want ErrItemNotFound", err)
	}
	if err := repo.DeleteItem(ctx, bob.ID, it.ID); !errors.Is(err, schedule.ErrItemNotFound) {
		t.Errorf("DeleteItem by other user: got %v, want ErrItemNotFound", err)
	}
	if err := repo.SetCompleted(ctx, bob.ID, it.ID, true); !errors.Is(err, schedule.ErrItemNotFound) {
		t.Errorf("SetCompleted by other user: got %v, want ErrItemNotFound", err)
	}

	day := mustParseDate(t, "2025-05-01")
	items, err := repo.ListItemsByDateRange(ctx, bob.ID, day, day)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("bob sees %d items, want 0", len(items))
	}
}

func TestUnscheduledTasks(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	user := createUser(t, repo, 1, 0)

	createItem(t, repo, user.ID, schedule.TypeTask, "Someday", "", "", "")
	createItem(t, repo, user.ID, schedule.TypeTask, "Dated", "2025-05-01", "", "")

	items, err := repo.ListUnscheduled(ctx, user.ID)
	if err != nil {
		t.Fatalf("failed to list unscheduled: %v", err)
	}
	if len(items) != 1 || items[0].Title != "Someday" {
		t.Fatalf("unscheduled: got %d items", len(items))
	}

	// Neither shows on the grid: one has no date, the other no time range.
	days := []time.Time{mustParseDate(t, "2025-05-01")}
	if n := loadSchedule(t, repo, user.ID, days).Len(); n != 0 {
		t.Errorf("grid fragments: got %d, want 0", n)
	}
}

// --- Schedule view ---

func TestScheduleAcrossMidnightAndRecurrence(t *testing.T) {
	repo := openRepo(t)
	user := createUser(t, repo, 1, 0)

	createItem(t, repo, user.ID, schedule.TypeEvent, "Night shift", "2025-05-01", "22:00", "02:00")
	standup, err := schedule.New(user.ID, schedule.TypeEvent, "Standup", "2025-04-28", "09:00", "09:15")
	if err != nil {
		t.Fatalf("failed to build standup: %v", err)
	}
	standup.Recurrence = "FREQ=WEEKLY;BYDAY=MO,TH"
	if err := repo.CreateItem(context.Background(), standup); err != nil {
		t.Fatalf("failed to create standup: %v", err)
	}

	days := []time.Time{mustParseDate(t, "2025-05-01"), mustParseDate(t, "2025-05-02")}
	buckets := loadSchedule(t, repo, user.ID, days)
	if len(buckets) != 2 {
		t.Fatalf("expected 2 days, got %d", len(buckets))
	}

	thursday, _ := buckets.Lookup("2025-05-01")
	if got := titles(thursday); len(got) != 2 || got[0] != "Standup" || got[1] != "Night shift" {
		t.Errorf("thursday: got %v", got)
	}
	if thursday[1].EndTime != schedule.EndOfDay || thursday[1].IsEnd {
		t.Errorf("night shift first fragment: %+v", thursday[1])
	}

	friday, _ := buckets.Lookup("2025-05-02")
	if len(friday) != 1 {
		t.Fatalf("friday: got %v", titles(friday))
	}
	if friday[0].IsStart || friday[0].StartTime != schedule.StartOfDay || friday[0].EndTime != "02:00" {
		t.Errorf("night shift continuation: %+v", friday[0])
	}
	if friday[0].Duration != 120 {
		t.Errorf("continuation duration: got %d, want 120", friday[0].Duration)
	}
}

// --- Live feed ---

func TestNotifyingStorePublishesWrites(t *testing.T) {
	broker := feed.NewBroker(feed.DefaultBuffer)
	store := feed.WrapStore(openRepo(t), broker)
	ctx := context.Background()
	user := createUser(t, store, 1, 0)

	events, unsubscribe := broker.Subscribe(user.ID)
	defer unsubscribe()

	it := createItem(t, store, user.ID, schedule.TypeTask, "Ship it", "2025-05-01", "15:00", "16:00")
	if err := store.SetCompleted(ctx, user.ID, it.ID, true); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}
	if err := store.DeleteItem(ctx, user.ID, it.ID); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	want := []feed.Kind{feed.KindCreated, feed.KindUpdated, feed.KindDeleted}
	for i, kind := range want {
		select {
		case ev := <-events:
			if ev.Kind != kind || ev.ItemID != it.ID {
				t.Errorf("event %d: got %+v, want %s for %s", i, ev, kind, it.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("event %d: timed out waiting for %s", i, kind)
		}
	}

	// Failed writes publish nothing.
	if err := store.DeleteItem(ctx, user.ID, it.ID); !errors.Is(err, schedule.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	select {
	case ev := <-events:
		t.Errorf("unexpected event after failed delete: %+v", ev)
	default:
	}
}

// --- Calendar exchange ---

func TestExportImportRoundTrip(t *testing.T) {
	repo := openRepo(t)
	ctx := context.Background()
	ada := createUser(t, repo, 1, 0)
	bob := createUser(t, repo, 2, 0)

	createItem(t, repo, ada.ID, schedule.TypeEvent, "Conference", "2025-05-01", "", "")
	createItem(t, repo, ada.ID, schedule.TypeEvent, "Release", "2025-05-01", "23:00", "01:00")
	done := createItem(t, repo, ada.ID, schedule.TypeTask, "Review PR", "2025-05-02", "10:00", "10:45")
	if err := repo.SetCompleted(ctx, ada.ID, done.ID, true); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}
	createItem(t, repo, ada.ID, schedule.TypeTask, "Someday", "", "", "")

	start, end := mustParseDate(t, "2025-05-01"), mustParseDate(t, "2025-05-02")
	stored, err := repo.ListItemsByDateRange(ctx, ada.ID, start, end)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}

	feedText, err := ics.Export(items, time.UTC)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if n := strings.Count(feedText, "BEGIN:VEVENT"); n != 3 {
		t.Errorf("exported %d events, want 3", n)
	}

	imported, err := ics.Import(strings.NewReader(feedText), bob.ID, time.UTC)
	if err != nil {
		t.Fatalf("failed to import: %v", err)
	}
	for _, it := range imported {
		if err := repo.CreateItem(ctx, it); err != nil {
			t.Fatalf("failed to store imported %q: %v", it.Title, err)
		}
	}

	back, err := repo.ListItemsByDateRange(ctx, bob.ID, start, end)
	if err != nil {
		t.Fatalf("failed to list imported: %v", err)
	}
	byTitle := make(map[string]*schedule.Item, len(back))
	for _, it := range back {
		byTitle[it.Title] = it
	}
	if len(byTitle) != 3 {
		t.Fatalf("imported titles: got %d, want 3", len(byTitle))
	}
	if c := byTitle["Conference"]; c == nil || c.IsScheduled() || c.Date != "2025-05-01" {
		t.Errorf("all-day event: %+v", c)
	}
	if r := byTitle["Release"]; r == nil || r.StartTime != "23:00" || r.EndTime != "01:00" || !r.CrossesMidnight() {
		t.Errorf("overnight event: %+v", r)
	}
	if p := byTitle["Review PR"]; p == nil || p.Type != schedule.TypeTask || !p.Completed {
		t.Errorf("completed task: %+v", p)
	}
}

// --- Reminders ---

func TestRemindersReachOnlyLinkedChats(t *testing.T) {
	repo := openRepo(t)
	ada := createUser(t, repo, 1, 1001)
	silent := createUser(t, repo, 2, 0)

	createItem(t, repo, ada.ID, schedule.TypeEvent, "Dentist", "2025-05-01", "14:15", "15:00")
	createItem(t, repo, silent.ID, schedule.TypeEvent, "Unlinked", "2025-05-01", "14:15", "15:00")

	n := &notifier{}
	svc := reminder.New(repo, n, reminder.Options{Lead: 15 * time.Minute, Location: time.UTC})

	now := time.Date(2025, 5, 1, 14, 0, 0, 0, time.UTC)
	count, err := svc.Tick(context.Background(), now)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("sent %d reminders, want 1", count)
	}
	if got := n.messages(1001); len(got) != 1 || got[0] != "⏰ Event in 15 min: Dentist (14:15-15:00)" {
		t.Errorf("messages: %v", got)
	}
}

func TestFullWorkflow(t *testing.T) {
	broker := feed.NewBroker(feed.DefaultBuffer)
	store := feed.WrapStore(openRepo(t), broker)
	ctx := context.Background()

	// 1. A Telegram user links a chat
	user := createUser(t, store, 7, 7007)
	events, unsubscribe := broker.Subscribe(user.ID)
	defer unsubscribe()

	// 2. Plan a day with an event, a task and a recurring block
	createItem(t, store, user.ID, schedule.TypeEvent, "Planning", "2025-05-05", "09:00", "10:00")
	task := createItem(t, store, user.ID, schedule.TypeTask, "Draft proposal", "2025-05-05", "10:30", "12:00")
	gym, err := schedule.New(user.ID, schedule.TypeEvent, "Gym", "2025-05-05", "18:00", "19:00")
	if err != nil {
		t.Fatalf("failed to build gym: %v", err)
	}
	gym.Recurrence = "FREQ=DAILY;COUNT=3"
	if err := recur.Validate(gym.Recurrence); err != nil {
		t.Fatalf("invalid rule: %v", err)
	}
	if err := store.CreateItem(ctx, gym); err != nil {
		t.Fatalf("failed to create gym: %v", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			if ev.Kind != feed.KindCreated {
				t.Errorf("event %d: got %s, want created", i, ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for create event %d", i)
		}
	}

	// 3. The week view shows the recurring block on three days only
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = mustParseDate(t, "2025-05-05").AddDate(0, 0, i)
	}
	buckets := loadSchedule(t, store, user.ID, days)
	if buckets.Len() != 5 {
		t.Errorf("week fragments: got %d, want 5", buckets.Len())
	}
	for _, date := range []string{"2025-05-08", "2025-05-09"} {
		if items, _ := buckets.Lookup(date); len(items) != 0 {
			t.Errorf("%s: got %v, want no items", date, titles(items))
		}
	}

	// 4. Reminders fire for the recurring block on a later day
	n := &notifier{}
	svc := reminder.New(store, n, reminder.Options{Lead: 10 * time.Minute, Location: time.UTC})
	if _, err := svc.Tick(ctx, time.Date(2025, 5, 7, 17, 50, 0, 0, time.UTC)); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if got := n.messages(7007); len(got) != 1 || !strings.Contains(got[0], "Gym") {
		t.Errorf("reminders: %v", got)
	}

	// 5. Complete the task; completed tasks get no reminder
	if err := store.SetCompleted(ctx, user.ID, task.ID, true); err != nil {
		t.Fatalf("failed to complete: %v", err)
	}
	count, err := svc.Tick(ctx, time.Date(2025, 5, 5, 10, 20, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if count != 0 {
		t.Errorf("completed task reminded %d times", count)
	}

	// 6. Export the week
	stored, err := store.ListItemsByDateRange(ctx, user.ID, days[0], days[6])
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	out, err := ics.Export(items, time.UTC)
	if err != nil {
		t.Fatalf("failed to export: %v", err)
	}
	if !strings.Contains(out, "RRULE:FREQ=DAILY;COUNT=3") {
		t.Error("expected recurrence rule in export")
	}
	if !strings.Contains(out, "STATUS:COMPLETED") {
		t.Error("expected completed task in export")
	}
}

func strPtr(s string) *string { return &s }
