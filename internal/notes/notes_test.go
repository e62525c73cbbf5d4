package notes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kalambet/neron/internal/dbpool"
)

// --- fakes ---

type fakeRows struct {
	data    [][]any
	idx     int
	rowsErr error
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.rowsErr }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx < len(r.data) {
		r.idx++
		return true
	}
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx-1]
	for i, d := range dest {
		switch v := d.(type) {
		case *int64:
			*v = row[i].(int64)
		case *time.Time:
			*v = row[i].(time.Time)
		case *string:
			*v = row[i].(string)
		case *float64:
			*v = row[i].(float64)
		}
	}
	return nil
}

type fakeConn struct {
	mu       sync.Mutex
	rows     [][]any
	queryErr error
	closed   bool
	lastSQL  string
	lastArgs []any
}

func (c *fakeConn) Ping(_ context.Context) error { return nil }

func (c *fakeConn) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSQL = sql
	c.lastArgs = args
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return &fakeRows{data: c.rows}, nil
}

func (c *fakeConn) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row { return nil }

func (c *fakeConn) Close(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func newTestRepo(t *testing.T, conn *fakeConn) *Repository {
	t.Helper()
	pool, err := dbpool.New(context.Background(), dbpool.Config{MinConns: 0, MaxConns: 2},
		func(_ context.Context) (dbpool.Conn, error) { return conn, nil })
	if err != nil {
		t.Fatalf("building pool: %v", err)
	}
	t.Cleanup(func() { pool.Close(context.Background()) })
	return NewRepository(pool)
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04:05", value)
	if err != nil {
		t.Fatalf("parsing %q: %v", value, err)
	}
	return parsed
}

// --- tests ---

func TestNotesForDay(t *testing.T) {
	conn := &fakeConn{rows: [][]any{
		{int64(1), ts(t, "2024-01-15 09:30:00"), "standup notes"},
		{int64(2), ts(t, "2024-01-15 14:10:00"), "design review"},
	}}
	repo := newTestRepo(t, conn)

	day := ts(t, "2024-01-15 00:00:00")
	got, err := repo.NotesForDay(context.Background(), day)
	if err != nil {
		t.Fatalf("NotesForDay: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d notes, want 2", len(got))
	}
	if got[0].ID != 1 || got[0].Text != "standup notes" {
		t.Errorf("first note = %+v", got[0])
	}
	if len(conn.lastArgs) != 1 || conn.lastArgs[0] != "2024-01-15" {
		t.Errorf("query args = %v, want the day as YYYY-MM-DD", conn.lastArgs)
	}
}

func TestNotesForDayEmpty(t *testing.T) {
	repo := newTestRepo(t, &fakeConn{})

	got, err := repo.NotesForDay(context.Background(), ts(t, "2030-06-01 00:00:00"))
	if err != nil {
		t.Fatalf("NotesForDay on empty table: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d notes, want 0", len(got))
	}
}

func TestNotesForDayQueryFailureInvalidatesConnection(t *testing.T) {
	conn := &fakeConn{queryErr: errors.New("relation does not exist")}
	repo := newTestRepo(t, conn)

	_, err := repo.NotesForDay(context.Background(), ts(t, "2024-01-15 00:00:00"))
	if !errors.Is(err, ErrRepository) {
		t.Fatalf("got %v, want ErrRepository", err)
	}
	if !conn.closed {
		t.Error("failing connection was returned to the pool instead of being closed")
	}
}

func TestAllNotesIsIdempotent(t *testing.T) {
	conn := &fakeConn{rows: [][]any{
		{int64(3), ts(t, "2024-02-01 08:00:00"), "newest"},
		{int64(2), ts(t, "2024-01-20 12:00:00"), "middle"},
		{int64(1), ts(t, "2024-01-15 09:00:00"), "oldest"},
	}}
	repo := newTestRepo(t, conn)

	first, err := repo.AllNotes(context.Background())
	if err != nil {
		t.Fatalf("AllNotes: %v", err)
	}
	second, err := repo.AllNotes(context.Background())
	if err != nil {
		t.Fatalf("AllNotes again: %v", err)
	}

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("got %d then %d notes, want 3 both times", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("note %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
	if first[0].Text != "newest" {
		t.Errorf("first note = %q, want store order preserved", first[0].Text)
	}
}
