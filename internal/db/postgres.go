package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Postgres implements schedule.Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to dsn and runs migrations.
func NewPostgres(dsn string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// CreateItem adds a new item to the repository.
func (p *Postgres) CreateItem(ctx context.Context, it *schedule.Item) error {
	prepareItem(it)

	query := `INSERT INTO items (` + itemColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := p.pool.Exec(ctx, query,
		it.ID,
		it.UserID,
		string(it.Type),
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
		string(it.Source),
		it.CreatedAt,
		it.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (p *Postgres) GetItem(ctx context.Context, userID, id string) (*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND user_id = $2`

	it, err := scanPostgresItem(p.pool.QueryRow(ctx, query, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}
	return it, nil
}

// UpdateItem replaces the stored fields of an item.
func (p *Postgres) UpdateItem(ctx context.Context, it *schedule.Item) error {
	query := `
		UPDATE items SET
			type = $1, title = $2, description = $3, date = $4, start_time = $5, end_time = $6,
			duration = $7, color = $8, icon = $9, completed = $10, recurrence = $11, updated_at = $12
		WHERE id = $13 AND user_id = $14
	`

	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = time.Now()
	}
	tag, err := p.pool.Exec(ctx, query,
		string(it.Type),
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
		it.UpdatedAt,
		it.ID,
		it.UserID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	return checkTag(tag)
}

// DeleteItem removes an item.
func (p *Postgres) DeleteItem(ctx context.Context, userID, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return checkTag(tag)
}

// SetCompleted marks an item as done or not done.
func (p *Postgres) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	query := `UPDATE items SET completed = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`

	tag, err := p.pool.Exec(ctx, query, completed, time.Now(), id, userID)
	if err != nil {
		return fmt.Errorf("setting completed: %w", err)
	}
	return checkTag(tag)
}

// ListItemsByDateRange returns the user's items within the date range (inclusive),
// plus recurring items that start on or before end.
func (p *Postgres) ListItemsByDateRange(ctx context.Context, userID string, start, end time.Time) ([]*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE user_id = $1 AND date <> ''
		  AND ((date >= $2 AND date <= $3) OR (recurrence <> '' AND date <= $3))
		ORDER BY date, start_time`

	return p.queryItems(ctx, query, userID, dateKey(start), dateKey(end))
}

// ListUnscheduled returns the user's items without a date, oldest first.
func (p *Postgres) ListUnscheduled(ctx context.Context, userID string) ([]*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE user_id = $1 AND date = '' ORDER BY created_at`
	return p.queryItems(ctx, query, userID)
}

// ListItemsOnDate returns every user's items dated on the given day, plus
// recurring items that started on or before it.
func (p *Postgres) ListItemsOnDate(ctx context.Context, date time.Time) ([]*schedule.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE date = $1 OR (recurrence != '' AND date != '' AND date < $1)
		ORDER BY start_time`
	return p.queryItems(ctx, query, dateKey(date))
}

func (p *Postgres) queryItems(ctx context.Context, query string, args ...any) ([]*schedule.Item, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	var items []*schedule.Item
	for rows.Next() {
		it, err := scanPostgresItem(rows)
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
func (p *Postgres) UpsertTelegramUser(ctx context.Context, u *schedule.User) error {
	if u.ID == "" {
		u.ID = newID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (telegram_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			photo_url = EXCLUDED.photo_url
		RETURNING ` + userColumns

	stored, err := scanPostgresUser(p.pool.QueryRow(ctx, query,
		u.ID,
		u.TelegramID,
		u.Username,
		u.FirstName,
		u.LastName,
		u.PhotoURL,
		u.ChatID,
		u.CreatedAt,
	))
	if err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	*u = *stored
	return nil
}

// GetUser retrieves a user by ID.
func (p *Postgres) GetUser(ctx context.Context, id string) (*schedule.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return p.getUser(ctx, query, id)
}

// GetUserByTelegramID retrieves a user by Telegram ID.
func (p *Postgres) GetUserByTelegramID(ctx context.Context, telegramID int64) (*schedule.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	return p.getUser(ctx, query, telegramID)
}

func (p *Postgres) getUser(ctx context.Context, query string, arg any) (*schedule.User, error) {
	u, err := scanPostgresUser(p.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// SetChatID records the Telegram chat used to reach the user.
func (p *Postgres) SetChatID(ctx context.Context, userID string, chatID int64) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET chat_id = $1 WHERE id = $2`, chatID, userID)
	if err != nil {
		return fmt.Errorf("setting chat id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrUserNotFound
	}
	return nil
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanPostgresItem(row scanner) (*schedule.Item, error) {
	var (
		it           schedule.Item
		itemType     string
		source       string
		created, upd time.Time
	)
	fields := itemFields(&it, &created, &upd)
	fields[2] = &itemType
	fields[13] = &source
	if err := row.Scan(fields...); err != nil {
		return nil, err
	}
	it.Type = schedule.ItemType(itemType)
	it.Source = schedule.Source(source)
	it.CreatedAt = created
	it.UpdatedAt = upd
	return &it, nil
}

func scanPostgresUser(row scanner) (*schedule.User, error) {
	var u schedule.User
	err := row.Scan(
		&u.ID,
		&u.TelegramID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PhotoURL,
		&u.ChatID,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func checkTag(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return schedule.ErrItemNotFound
	}
	return nil
}
