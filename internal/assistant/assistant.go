// Package assistant lets a language model read and edit a user's schedule
// through tool calls.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/llm"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
	"github.com/chronoflow/chronoflow/internal/slots"
)

// ErrEmptyMessage is returned when the user message is blank.
var ErrEmptyMessage = errors.New("message cannot be empty")

// maxListDays bounds list_items ranges.
const maxListDays = 62

// Action records a change or lookup performed on the user's behalf.
type Action struct {
	Tool    string         `json:"tool"`
	ItemID  string         `json:"itemId,omitempty"`
	Summary string         `json:"summary"`
	Item    *schedule.Item `json:"item,omitempty"`
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Text    string   `json:"reply"`
	Actions []Action `json:"actions"`
}

// Options configures an Assistant.
type Options struct {
	Finder        *slots.Finder
	Location      *time.Location
	Logger        *zap.Logger
	HistoryTokens int
	CountTokens   TokenCounter
	Source        schedule.Source
	Now           func() time.Time
}

// Assistant runs chat exchanges against a user's schedule.
type Assistant struct {
	client        llm.Client
	repo          schedule.Repository
	finder        *slots.Finder
	loc           *time.Location
	logger        *zap.Logger
	historyTokens int
	countTokens   TokenCounter
	source        schedule.Source
	now           func() time.Time
}

// New creates an Assistant. Zero options get working defaults.
func New(client llm.Client, repo schedule.Repository, opts Options) *Assistant {
	a := &Assistant{
		client:        client,
		repo:          repo,
		finder:        opts.Finder,
		loc:           opts.Location,
		logger:        opts.Logger,
		historyTokens: opts.HistoryTokens,
		countTokens:   opts.CountTokens,
		source:        opts.Source,
		now:           opts.Now,
	}
	if a.finder == nil {
		a.finder = slots.New([]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, "09:00", "17:00")
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.historyTokens <= 0 {
		a.historyTokens = DefaultHistoryTokens
	}
	if a.countTokens == nil {
		a.countTokens = TiktokenCounter
	}
	if a.source == "" {
		a.source = schedule.SourceAssistant
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Chat sends message, with prior history, to the model and applies any
// tool calls it makes to userID's schedule.
func (a *Assistant) Chat(ctx context.Context, userID, message string, history []llm.Message) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	now := a.now().In(a.loc)
	system, err := a.systemPrompt(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	messages := []llm.Message{{Role: llm.RoleSystem, Content: system}}
	messages = append(messages, trimHistory(history, a.historyTokens, a.countTokens)...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	run := &run{assistant: a, userID: userID, now: now}
	text, err := a.client.ChatWithTools(ctx, messages, Tools(), run.execute)
	if err != nil {
		a.logger.Warn("assistant exchange failed",
			zap.String("user_id", userID),
			zap.Int("actions", len(run.actions)),
			zap.Error(err))
		return nil, fmt.Errorf("assistant chat: %w", err)
	}

	a.logger.Info("assistant exchange",
		zap.String("user_id", userID),
		zap.Int("history", len(messages)-2),
		zap.Int("actions", len(run.actions)))

	return &Reply{Text: strings.TrimSpace(text), Actions: run.actions}, nil
}

func (a *Assistant) systemPrompt(ctx context.Context, userID string, now time.Time) (string, error) {
	today := dateutil.TruncateToDay(now)
	upcoming, err := a.repo.ListItemsByDateRange(ctx, userID, today, today.AddDate(0, 0, 6))
	if err != nil {
		return "", fmt.Errorf("loading schedule: %w", err)
	}
	unscheduled, err := a.repo.ListUnscheduled(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading unscheduled tasks: %w", err)
	}

	return buildSystemPrompt(promptContext{
		now:         now,
		dayStart:    a.finder.DayStart(),
		dayEnd:      a.finder.DayEnd(),
		nextWorkday: a.finder.NextWorkday(now),
		nextStart:   a.finder.NextAvailableStart(now),
		upcoming:    upcoming,
		unscheduled: unscheduled,
	}), nil
}

// run holds the state of one Chat call.
type run struct {
	assistant *Assistant
	userID    string
	now       time.Time
	actions   []Action
}

func (r *run) execute(ctx context.Context, tc llm.ToolCall) (string, error) {
	call, err := DecodeToolCall(tc.Name, tc.Arguments)
	if err != nil {
		return "", err
	}

	result, err := r.apply(ctx, call)
	if err != nil {
		r.assistant.logger.Debug("tool call failed",
			zap.String("tool", tc.Name),
			zap.String("user_id", r.userID),
			zap.Error(err))
		return "", err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(out), nil
}

func (r *run) record(tool string, it *schedule.Item, summary string) {
	act := Action{Tool: tool, Summary: summary, Item: it}
	if it != nil {
		act.ItemID = it.ID
	}
	r.actions = append(r.actions, act)
}

// apply executes a decoded call and returns the value reported to the model.
func (r *run) apply(ctx context.Context, call ToolCall) (any, error) {
	repo := r.assistant.repo

	switch c := call.(type) {
	case CreateItemCall:
		it, err := schedule.New(r.userID, c.Type, c.Title, c.Date, c.StartTime, c.EndTime)
		if err != nil {
			return nil, err
		}
		if err := recur.Validate(c.Recurrence); err != nil {
			return nil, err
		}
		it.Description = c.Description
		it.Recurrence = c.Recurrence
		it.Source = r.assistant.source
		if err := repo.CreateItem(ctx, it); err != nil {
			return nil, fmt.Errorf("creating item: %w", err)
		}
		r.record(ToolCreateItem, it, "created "+describe(it))
		return it, nil

	case UpdateItemCall:
		it, err := repo.GetItem(ctx, r.userID, c.ID)
		if err != nil {
			return nil, err
		}
		if err := it.Apply(c.Patch); err != nil {
			return nil, err
		}
		if err := recur.Validate(it.Recurrence); err != nil {
			return nil, err
		}
		if err := repo.UpdateItem(ctx, it); err != nil {
			return nil, fmt.Errorf("updating item: %w", err)
		}
		r.record(ToolUpdateItem, it, "updated "+describe(it))
		return it, nil

	case DeleteItemCall:
		it, err := repo.GetItem(ctx, r.userID, c.ID)
		if err != nil {
			return nil, err
		}
		if err := repo.DeleteItem(ctx, r.userID, c.ID); err != nil {
			return nil, fmt.Errorf("deleting item: %w", err)
		}
		r.record(ToolDeleteItem, it, "deleted "+describe(it))
		return map[string]string{"deleted": c.ID}, nil

	case CompleteItemCall:
		done := true
		if c.Completed != nil {
			done = *c.Completed
		}
		if err := repo.SetCompleted(ctx, r.userID, c.ID, done); err != nil {
			return nil, err
		}
		it, err := repo.GetItem(ctx, r.userID, c.ID)
		if err != nil {
			return nil, err
		}
		verb := "completed "
		if !done {
			verb = "reopened "
		}
		r.record(ToolCompleteItem, it, verb+describe(it))
		return it, nil

	case ListItemsCall:
		items, err := r.list(ctx, c)
		if err != nil {
			return nil, err
		}
		r.record(ToolListItems, nil, fmt.Sprintf("listed %d items", len(items)))
		return items, nil

	case FindFreeSlotCall:
		slot, ok, err := r.findSlot(ctx, c)
		if err != nil {
			return nil, err
		}
		if !ok {
			return map[string]any{"found": false}, nil
		}
		r.record(ToolFindFreeSlot, nil, fmt.Sprintf("found %s %s-%s", slot.Date, slot.Start, slot.End))
		return map[string]any{"found": true, "slot": slot}, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.ToolName())
	}
}

func (r *run) list(ctx context.Context, c ListItemsCall) ([]schedule.Item, error) {
	repo := r.assistant.repo
	if c.Start == "" && c.End == "" {
		items, err := repo.ListUnscheduled(ctx, r.userID)
		if err != nil {
			return nil, err
		}
		return deref(items), nil
	}

	start, end := c.Start, c.End
	if start == "" {
		start = end
	}
	if end == "" {
		end = start
	}
	rng, err := dateutil.NewDateRange(start, end)
	if err != nil {
		return nil, err
	}
	if err := rng.Check(maxListDays); err != nil {
		return nil, err
	}

	items, err := repo.ListItemsByDateRange(ctx, r.userID, rng.Start, rng.End)
	if err != nil {
		return nil, err
	}
	expanded, err := recur.Expand(deref(items), rng.Start, rng.End)
	if err != nil {
		r.assistant.logger.Warn("skipping invalid recurrence", zap.Error(err))
	}
	return expanded, nil
}

func (r *run) findSlot(ctx context.Context, c FindFreeSlotCall) (slots.Slot, bool, error) {
	from := r.now
	if c.Date != "" {
		d, err := time.ParseInLocation(schedule.DateLayout, c.Date, r.assistant.loc)
		if err != nil {
			return slots.Slot{}, false, schedule.ErrInvalidDateFormat
		}
		if d.After(from) {
			from = d
		}
	}
	days := c.Days
	if days <= 0 || days > 31 {
		days = 7
	}

	first := dateutil.TruncateToDay(from)
	last := first.AddDate(0, 0, days)
	// Include the day before so overnight items spill into the first day.
	items, err := r.assistant.repo.ListItemsByDateRange(ctx, r.userID, first.AddDate(0, 0, -1), last)
	if err != nil {
		return slots.Slot{}, false, err
	}
	expanded, err := recur.Expand(deref(items), first.AddDate(0, 0, -1), last)
	if err != nil {
		r.assistant.logger.Warn("skipping invalid recurrence", zap.Error(err))
	}

	slot, ok := r.assistant.finder.FindNext(expanded, from, c.Duration, days)
	return slot, ok, nil
}

func deref(items []*schedule.Item) []schedule.Item {
	out := make([]schedule.Item, len(items))
	for i, it := range items {
		out[i] = *it
	}
	return out
}

func describe(it *schedule.Item) string {
	switch {
	case it.IsScheduled():
		return fmt.Sprintf("%q on %s %s-%s", it.Title, it.Date, it.StartTime, it.EndTime)
	case it.Date != "":
		return fmt.Sprintf("%q on %s", it.Title, it.Date)
	default:
		return fmt.Sprintf("%q", it.Title)
	}
}
