package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/chronoflow/chronoflow/internal/dateutil"
	"github.com/chronoflow/chronoflow/internal/display"
	"github.com/chronoflow/chronoflow/internal/recur"
	"github.com/chronoflow/chronoflow/internal/schedule"
)

const helpText = `ChronoFlow bot

/add <text> - capture a task (or just send text)
/today - today's agenda
/tomorrow - tomorrow's agenda
/done <n> - complete item n of the last agenda
/plan [minutes] - next free slot, default 60 minutes
/ask <question> - ask the assistant
/help - this message`

func (b *Bot) dispatch(ctx context.Context, msg *tgbotapi.Message, command string) (string, error) {
	args := strings.TrimSpace(msg.CommandArguments())

	switch command {
	case "start":
		return b.cmdStart(ctx, msg)
	case "help":
		return helpText, nil
	case "add":
		return b.cmdAdd(ctx, msg, args)
	case "text":
		return b.cmdAdd(ctx, msg, strings.TrimSpace(msg.Text))
	case "today":
		return b.cmdAgenda(ctx, msg, 0)
	case "tomorrow":
		return b.cmdAgenda(ctx, msg, 1)
	case "done":
		return b.cmdDone(ctx, msg, args)
	case "plan":
		return b.cmdPlan(ctx, msg, args)
	case "ask":
		return b.cmdAsk(ctx, msg, args)
	default:
		return "Unknown command. " + helpText, nil
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) (string, error) {
	u, err := b.user(ctx, msg)
	if err != nil {
		return "", err
	}
	b.logger.Info("telegram chat linked", zap.String("user_id", u.ID), zap.Int64("chat_id", u.ChatID))
	return fmt.Sprintf("Hi %s! Send me anything to add it to your inbox, or /help for commands.", u.DisplayName()), nil
}

func (b *Bot) cmdAdd(ctx context.Context, msg *tgbotapi.Message, text string) (string, error) {
	u, err := b.user(ctx, msg)
	if err != nil {
		return "", err
	}

	it, err := schedule.New(u.ID, schedule.TypeTask, text, "", "", "")
	if err != nil {
		return "", err
	}
	it.Source = schedule.SourceTelegram
	if err := b.store.CreateItem(ctx, it); err != nil {
		return "", fmt.Errorf("creating task: %w", err)
	}
	return "📥 Added to inbox: " + it.Title, nil
}

func (b *Bot) cmdAgenda(ctx context.Context, msg *tgbotapi.Message, offset int) (string, error) {
	u, err := b.user(ctx, msg)
	if err != nil {
		return "", err
	}

	day := dateutil.TruncateToDay(b.now().In(b.loc)).AddDate(0, 0, offset)
	stored, err := b.store.ListItemsByDateRange(ctx, u.ID, day, day)
	if err != nil {
		return "", fmt.Errorf("listing items: %w", err)
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	items, err = recur.Expand(items, day, day)
	if err != nil {
		b.logger.Warn("skipping invalid recurrence", zap.Error(err))
	}

	buckets := display.BucketForDisplay(items, []time.Time{day})
	fragments, _ := buckets.Lookup(dateutil.Key(day))

	label := "Today"
	if offset == 1 {
		label = "Tomorrow"
	}
	header := fmt.Sprintf("%s, %s", label, day.Format("Monday Jan 2"))
	if len(fragments) == 0 {
		b.setListing(msg.Chat.ID, nil)
		return header + "\n\nNothing scheduled.", nil
	}

	var sb strings.Builder
	sb.WriteString(header + "\n")
	ids := make([]string, 0, len(fragments))
	for i, f := range fragments {
		mark := "•"
		if f.IsTask() {
			mark = "☐"
			if f.Completed {
				mark = "☑"
			}
		}
		suffix := ""
		if !f.IsEnd {
			suffix = " →"
		}
		fmt.Fprintf(&sb, "\n%d. %s %s-%s %s%s", i+1, mark, f.StartTime, f.EndTime, f.Title, suffix)
		ids = append(ids, f.ID)
	}
	b.setListing(msg.Chat.ID, ids)
	return sb.String(), nil
}

func (b *Bot) cmdDone(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	n, err := strconv.Atoi(args)
	if err != nil || n < 1 {
		return "", usage("Usage: /done <n>, with n from the last /today or /tomorrow list")
	}
	ids := b.listing(msg.Chat.ID)
	if n > len(ids) {
		return "", usage("There is no item %d in the last list.", n)
	}

	u, err := b.user(ctx, msg)
	if err != nil {
		return "", err
	}
	id := ids[n-1]
	if err := b.store.SetCompleted(ctx, u.ID, id, true); err != nil {
		return "", err
	}
	it, err := b.store.GetItem(ctx, u.ID, id)
	if err != nil {
		return "", err
	}
	return "✅ Done: " + it.Title, nil
}

func (b *Bot) cmdPlan(ctx context.Context, msg *tgbotapi.Message, args string) (string, error) {
	duration := 60
	if args != "" {
		n, err := strconv.Atoi(args)
		if err != nil || n <= 0 {
			return "", usage("Usage: /plan [minutes]")
		}
		duration = n
	}

	u, err := b.user(ctx, msg)
	if err != nil {
		return "", err
	}

	now := b.now().In(b.loc)
	first := dateutil.TruncateToDay(now).AddDate(0, 0, -1)
	last := first.AddDate(0, 0, 8)
	stored, err := b.store.ListItemsByDateRange(ctx, u.ID, first, last)
	if err != nil {
		return "", fmt.Errorf("listing items: %w", err)
	}
	items := make([]schedule.Item, len(stored))
	for i, it := range stored {
		items[i] = *it
	}
	items, err = recur.Expand(items, first, last)
	if err != nil {
		b.logger.Warn("skipping invalid recurrence", zap.Error(err))
	}

	slot, ok := b.finder.FindNext(items, now, duration, 7)
	if !ok {
		return fmt.Sprintf("No free %d-minute slot in the next 7 days.", duration), nil
	}
	return fmt.Sprintf("🗓 Next free %d minutes: %s %s-%s", duration, slot.Date, slot.Start, slot.End), nil
}

func (b *Bot) cmdAsk(ctx context.Context, msg *tgbotapi.Message, question string) (string, error) {
	if b.asker == nil {
		return "", usage("The assistant is not configured.")
	}
	if question == "" {
		return "", usage("Usage: /ask <question>")
	}

	u, err := b.user(ctx, msg)
	if err != nil {
		return "", err
	}

	reply, err := b.asker.Chat(ctx, u.ID, question, b.chatHistory(msg.Chat.ID))
	if err != nil {
		return "", usage("The assistant could not answer right now.")
	}
	b.remember(msg.Chat.ID, question, reply.Text)

	var sb strings.Builder
	sb.WriteString(reply.Text)
	for _, a := range reply.Actions {
		if a.Item == nil {
			continue
		}
		sb.WriteString("\n• " + a.Summary)
	}
	return sb.String(), nil
}
