// Package notes provides read-only access to the stored notes. Notes
// are written by an external process; this server only reads them.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kalambet/neron/internal/dbpool"
)

// ErrRepository wraps any failure while querying the notes table. The
// connection involved is invalidated and not returned to the pool.
var ErrRepository = errors.New("notes: query failed")

// Note is one stored note. Immutable once written.
type Note struct {
	ID        int64
	Timestamp time.Time
	Text      string
}

// Repository reads notes through the connection pool.
type Repository struct {
	pool        *dbpool.Pool
	maxAttempts int
}

func NewRepository(pool *dbpool.Pool) *Repository {
	return &Repository{pool: pool, maxAttempts: 3}
}

// NotesForDay returns every note whose timestamp falls on the given
// day, ascending by timestamp. No matches yields an empty slice, not an
// error.
func (r *Repository) NotesForDay(ctx context.Context, day time.Time) ([]Note, error) {
	var result []Note
	err := r.pool.WithConn(ctx, r.maxAttempts, func(conn dbpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, timestamp, text
			FROM neron
			WHERE DATE(timestamp) = $1::date
			ORDER BY timestamp ASC`,
			day.Format("2006-01-02"))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRepository, err)
		}
		result, err = scanNotes(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("notes fetched for day", "day", day.Format("2006-01-02"), "count", len(result))
	return result, nil
}

// AllNotes returns every stored note, newest first.
func (r *Repository) AllNotes(ctx context.Context) ([]Note, error) {
	var result []Note
	err := r.pool.WithConn(ctx, r.maxAttempts, func(conn dbpool.Conn) error {
		rows, err := conn.Query(ctx, `
			SELECT id, timestamp, text
			FROM neron
			ORDER BY timestamp DESC`)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRepository, err)
		}
		result, err = scanNotes(rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("all notes fetched", "count", len(result))
	return result, nil
}

func scanNotes(rows pgx.Rows) ([]Note, error) {
	defer rows.Close()

	var result []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.Timestamp, &n.Text); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %w", ErrRepository, err)
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	return result, nil
}
