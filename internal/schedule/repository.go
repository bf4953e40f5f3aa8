package schedule

import (
	"context"
	"time"
)

// Repository defines the storage interface for schedule items.
// Every lookup is scoped to the owning user; an item owned by someone
// else is reported as ErrItemNotFound.
type Repository interface {
	// CreateItem adds a new item. The item's ID is assigned if empty.
	CreateItem(ctx context.Context, item *Item) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, userID, id string) (*Item, error)

	// UpdateItem replaces a stored item with the given one.
	UpdateItem(ctx context.Context, item *Item) error

	// DeleteItem removes an item.
	DeleteItem(ctx context.Context, userID, id string) error

	// SetCompleted marks a task as done or not done.
	SetCompleted(ctx context.Context, userID, id string, completed bool) error

	// ListItemsByDateRange returns the user's items dated within the range (inclusive),
	// ordered by date and start time. Recurring items are returned when their
	// first occurrence is on or before end.
	ListItemsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*Item, error)

	// ListUnscheduled returns the user's items without a date.
	ListUnscheduled(ctx context.Context, userID string) ([]*Item, error)

	// ListItemsOnDate returns every user's items dated on the given day.
	// Recurring items that started earlier are included for expansion.
	ListItemsOnDate(ctx context.Context, date time.Time) ([]*Item, error)

	// Close releases any resources held by the repository.
	Close() error
}

// User is an account, identified externally by its Telegram identity.
type User struct {
	ID         string    `json:"id"`
	TelegramID int64     `json:"telegramId"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	PhotoURL   string    `json:"photoUrl,omitempty"`
	ChatID     int64     `json:"-"` // Telegram chat the bot talks to, 0 if never started
	CreatedAt  time.Time `json:"createdAt"`
}

// DisplayName returns the best human-readable name for the user.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return "@" + u.Username
	default:
		return u.ID
	}
}

// UserRepository defines the storage interface for users.
type UserRepository interface {
	// UpsertTelegramUser creates the user for u.TelegramID or refreshes its profile.
	// On return u.ID and u.CreatedAt reflect the stored record.
	UpsertTelegramUser(ctx context.Context, u *User) error

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetUserByTelegramID retrieves a user by Telegram ID.
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)

	// SetChatID records the chat the bot uses to reach the user.
	SetChatID(ctx context.Context, userID string, chatID int64) error
}

// Store combines item and user storage.
type Store interface {
	Repository
	UserRepository
}
