// Package telegram runs the ChronoFlow bot: quick task capture, daily
// agendas, assistant questions and reminders.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/chronoflow/chronoflow/internal/assistant"
	"github.com/chronoflow/chronoflow/internal/llm"
	"github.com/chronoflow/chronoflow/internal/schedule"
	"github.com/chronoflow/chronoflow/internal/slots"
)

// maxHistory is the number of messages kept per chat for /ask follow-ups.
const maxHistory = 10

// Sender is the subset of the Bot API used for replies.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Asker answers free-form questions about a user's schedule.
type Asker interface {
	Chat(ctx context.Context, userID, message string, history []llm.Message) (*assistant.Reply, error)
}

// Options configures a Bot.
type Options struct {
	Asker    Asker
	Finder   *slots.Finder
	Location *time.Location
	Logger   *zap.Logger
	// RateLimit and Burst bound messages handled per chat.
	RateLimit rate.Limit
	Burst     int
	Now       func() time.Time
}

// Bot handles Telegram updates against a schedule store.
type Bot struct {
	sender Sender
	store  schedule.Store
	asker  Asker
	finder *slots.Finder
	loc    *time.Location
	logger *zap.Logger
	limit  rate.Limit
	burst  int
	now    func() time.Time

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	listings map[int64][]string // chat -> item IDs of the last agenda
	history  map[int64][]llm.Message
}

// New creates a Bot that replies through sender.
func New(sender Sender, store schedule.Store, opts Options) *Bot {
	b := &Bot{
		sender:   sender,
		store:    store,
		asker:    opts.Asker,
		finder:   opts.Finder,
		loc:      opts.Location,
		logger:   opts.Logger,
		limit:    opts.RateLimit,
		burst:    opts.Burst,
		now:      opts.Now,
		limiters: make(map[int64]*rate.Limiter),
		listings: make(map[int64][]string),
		history:  make(map[int64][]llm.Message),
	}
	if b.finder == nil {
		b.finder = slots.New([]time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, "09:00", "17:00")
	}
	if b.loc == nil {
		b.loc = time.Local
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.limit == 0 {
		b.limit = rate.Every(time.Second)
	}
	if b.burst <= 0 {
		b.burst = 5
	}
	if b.now == nil {
		b.now = time.Now
	}
	return b
}

// NewAPI connects to the Bot API with the given token.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is not configured")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	return api, nil
}

// Run long-polls api for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context, api *tgbotapi.BotAPI) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := api.GetUpdatesChan(u)
	defer api.StopReceivingUpdates()

	b.logger.Info("telegram bot started", zap.String("username", api.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("telegram bot stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(ctx, upd)
		}
	}
}

// Notify sends text to a chat. It satisfies reminder.Notifier.
func (b *Bot) Notify(ctx context.Context, chatID int64, text string) error {
	_, err := b.sender.Send(tgbotapi.NewMessage(chatID, text))
	recordSend("reminder", err)
	if err != nil {
		return fmt.Errorf("sending to chat %d: %w", chatID, err)
	}
	return nil
}

// HandleUpdate processes one update and replies in the same chat.
func (b *Bot) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	chatID := msg.Chat.ID

	if !b.allow(chatID) {
		RateLimitedTotal.Inc()
		b.logger.Debug("telegram message rate limited", zap.Int64("chat_id", chatID))
		return
	}

	command := "text"
	if msg.IsCommand() {
		command = msg.Command()
	}
	UpdatesTotal.WithLabelValues(command).Inc()

	reply, err := b.dispatch(ctx, msg, command)
	if err != nil {
		b.logger.Warn("telegram command failed",
			zap.String("command", command),
			zap.Int64("chat_id", chatID),
			zap.Error(err))
		reply = "⚠️ " + userMessage(err)
	}
	if reply == "" {
		return
	}

	out := tgbotapi.NewMessage(chatID, reply)
	_, err = b.sender.Send(out)
	recordSend("reply", err)
	if err != nil {
		b.logger.Warn("telegram reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) allow(chatID int64) bool {
	b.mu.Lock()
	l, ok := b.limiters[chatID]
	if !ok {
		l = rate.NewLimiter(b.limit, b.burst)
		b.limiters[chatID] = l
	}
	b.mu.Unlock()
	return l.Allow()
}

// user upserts the sender's profile and links the chat.
func (b *Bot) user(ctx context.Context, msg *tgbotapi.Message) (*schedule.User, error) {
	u := &schedule.User{
		TelegramID: msg.From.ID,
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
		LastName:   msg.From.LastName,
	}
	if err := b.store.UpsertTelegramUser(ctx, u); err != nil {
		return nil, fmt.Errorf("saving user: %w", err)
	}
	if u.ChatID != msg.Chat.ID {
		if err := b.store.SetChatID(ctx, u.ID, msg.Chat.ID); err != nil {
			return nil, fmt.Errorf("linking chat: %w", err)
		}
		u.ChatID = msg.Chat.ID
	}
	return u, nil
}

func (b *Bot) setListing(chatID int64, ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listings[chatID] = ids
}

func (b *Bot) listing(chatID int64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listings[chatID]
}

func (b *Bot) chatHistory(chatID int64) []llm.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Message(nil), b.history[chatID]...)
}

func (b *Bot) remember(chatID int64, question, answer string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := append(b.history[chatID],
		llm.Message{Role: llm.RoleUser, Content: question},
		llm.Message{Role: llm.RoleAssistant, Content: answer})
	if len(h) > maxHistory {
		h = h[len(h)-maxHistory:]
	}
	b.history[chatID] = h
}

// userMessage turns an error into text safe to show in chat.
func userMessage(err error) string {
	var ue *usageError
	switch {
	case errors.As(err, &ue):
		return ue.msg
	case errors.Is(err, schedule.ErrItemNotFound):
		return "That item no longer exists."
	case errors.Is(err, schedule.ErrEmptyTitle):
		return "Tell me what to add, e.g. /add Buy milk"
	default:
		return "Something went wrong, please try again."
	}
}

type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usage(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}
