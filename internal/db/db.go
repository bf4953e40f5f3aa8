// Package db provides SQLite and Postgres storage for schedule items and users.
package db

import (
	"fmt"
	"time"

	"github.com/chronoflow/chronoflow/internal/schedule"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and configures a storage backend.
type Options struct {
	Driver string
	Path   string // SQLite file path
	DSN    string // Postgres connection string
}

// Open opens the store named by opts.Driver and runs migrations.
func Open(opts Options) (schedule.Store, error) {
	switch opts.Driver {
	case "", DriverSQLite:
		return New(opts.Path)
	case DriverPostgres:
		return NewPostgres(opts.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

const itemColumns = `id, user_id, type, title, description, date, start_time, end_time,
	duration, color, icon, completed, recurrence, source, created_at, updated_at`

const userColumns = `id, telegram_id, username, first_name, last_name, photo_url, chat_id, created_at`

// scanner is satisfied by both database/sql and pgx rows.
type scanner interface {
	Scan(dest ...any) error
}

// itemFields returns scan destinations for itemColumns, with the two
// timestamps delegated to the caller.
func itemFields(it *schedule.Item, created, updated any) []any {
	return []any{
		&it.ID,
		&it.UserID,
		&it.Type,
		&it.Title,
		&it.Description,
		&it.Date,
		&it.StartTime,
		&it.EndTime,
		&it.Duration,
		&it.Color,
		&it.Icon,
		&it.Completed,
		&it.Recurrence,
		&it.Source,
		created,
		updated,
	}
}

// prepareItem fills in the ID and timestamps of a new item.
func prepareItem(it *schedule.Item) {
	if it.ID == "" {
		it.ID = newID()
	}
	now := time.Now()
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	if it.UpdatedAt.IsZero() {
		it.UpdatedAt = it.CreatedAt
	}
}

func dateKey(t time.Time) string {
	return t.Format(schedule.DateLayout)
}
