package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// SQLite implements schedule.Store using SQLite.
type SQLite struct {
	db *sql.DB
}

// New creates a new SQLite repository and runs migrations.
func New(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Single writer; the API, bot and reminder loop share this handle.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func newID() string {
	return uuid.NewString()
}

// CreateItem adds a new item to the repository.
func (s *SQLite) CreateItem(ctx context.Context, it *schedule.Item) error {
	prepareItem(it)

	query := `INSERT INTO items (` + itemColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		it.ID,
		it.UserID,
		it.Type,
		it.Title,
		it.Description,
		it.Date,
		it.StartTime,
		it.EndTime,
		it.Duration,
		it.Color,
		it.Icon,
		it.Completed,
		it.Recurrence,
		it.Source,
		it.CreatedAt.UTC().Format(time.RFC3339Nano),
		it.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *SQLite) GetItem(ctx context.Context, userID, id string) (*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ? AND user_id = ?`

	it, err := scanSQLiteItem(s.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return it, nil
}

// UpdateItem replaces the stored fields of an item.
func (s *SQLite) UpdateItem(ctx context.Context, it *schedule.Item) error {
	query := `
		UPDATE items SET
			type = ?, title = ?, description = ?, date = ?, start_time = ?, end_time = ?,
			duration = ?, color = ?, icon = ?, completed = ?, recurrence = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`

	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, query,
		it.Type,
		it.Title,
		it.Description,
		it.Date,
		it.StartTime,
		it.EndTime,
		it.Duration,
		it.Color,
		it.Icon,
		it.Completed,
		it.Recurrence,
		it.UpdatedAt.UTC().Format(time.RFC3339Nano),
		it.ID,
		it.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return checkAffected(result)
}

// DeleteItem removes an item.
func (s *SQLite) DeleteItem(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return checkAffected(result)
}

// SetCompleted marks an item as done or not done.
func (s *SQLite) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	query := `UPDATE items SET completed = ?, updated_at = ? WHERE id = ? AND user_id = ?`

	result, err := s.db.ExecContext(ctx, query, completed, time.Now().UTC().Format(time.RFC3339Nano), id, userID)
	if err != nil {
		return fmt.Errorf("setting completed: %w", err)
	}
	return checkAffected(result)
}

// ListItemsByDateRange returns the user's items within the date range (inclusive),
// plus recurring items that start on or before end.
func (s *SQLite) ListItemsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_id = ? AND date != ''
		  AND ((date >= ? AND date <= ?) OR (recurrence != '' AND date <= ?))
		ORDER BY date, start_time`

	to := dateKey(end)
	return s.queryItems(ctx, query, userID, dateKey(start), to, to)
}

// ListUnscheduled returns the user's items without a date, oldest first.
func (s *SQLite) ListUnscheduled(ctx context.Context, userID string) ([]*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_id = ? AND date = ''
		ORDER BY created_at`

	return s.queryItems(ctx, query, userID)
}

// ListItemsOnDate returns every user's items dated on the given day, plus
// recurring items that started on or before it.
func (s *SQLite) ListItemsOnDate(ctx context.Context, date time.Time) ([]*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE date = ? OR (recurrence != '' AND date != '' AND date < ?)
		ORDER BY start_time`
	key := dateKey(date)
	return s.queryItems(ctx, query, key, key)
}

func (s *SQLite) queryItems(ctx context.Context, query string, args ...any) ([]*schedule.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*schedule.Item
	for rows.Next() {
		it, err := scanSQLiteItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating items: %w", err)
	}

	return items, nil
}

// UpsertTelegramUser creates or refreshes the user for u.TelegramID.
func (s *SQLite) UpsertTelegramUser(ctx context.Context, u *schedule.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			photo_url = excluded.photo_url
	`
	_, err := s.db.ExecContext(ctx, query,
		u.ID,
		u.TelegramID,
		u.Username,
		u.FirstName,
		u.LastName,
		u.PhotoURL,
		u.ChatID,
		u.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}

	stored, err := s.GetUserByTelegramID(ctx, u.TelegramID)
	if err != nil {
		return err
	}
	*u = *stored
	return nil
}

// GetUser retrieves a user by ID.
func (s *SQLite) GetUser(ctx context.Context, id string) (*schedule.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return s.getUser(ctx, query, id)
}

// GetUserByTelegramID retrieves a user by Telegram ID.
func (s *SQLite) GetUserByTelegramID(ctx context.Context, telegramID int64) (*schedule.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = ?`
	return s.getUser(ctx, query, telegramID)
}

func (s *SQLite) getUser(ctx context.Context, query string, arg any) (*schedule.User, error) {
	var (
		u         schedule.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PhotoURL,
		&u.ChatID,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schedule.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	u.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created at: %w", err)
	}
	return &u, nil
}

// SetChatID records the Telegram chat used to reach the user.
func (s *SQLite) SetChatID(ctx context.Context, userID string, chatID int64) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET chat_id = ? WHERE id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("setting chat id: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return schedule.ErrUserNotFound
	}
	return nil
}

// Close releases database resources.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func scanSQLiteItem(row scanner) (*schedule.Item, error) {
	var (
		it                   schedule.Item
		createdAt, updatedAt string
	)
	if err := row.Scan(itemFields(&it, &createdAt, &updatedAt)...); err != nil {
		return nil, err
	}

	var err error
	it.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created at: %w", err)
	}
	it.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing updated at: %w", err)
	}
	return &it, nil
}

func checkAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if rows == 0 {
		return schedule.ErrItemNotFound
	}
	return nil
}
