package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"

	_ "modernc.org/sqlite"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano

	settingInitialBalance = "initial_balance_cents"
)

// DefaultUser owns the ledger when no user is configured.
const DefaultUser = "default"

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteRepository is the persistent ledger. Every row is scoped to userID.
type SQLiteRepository struct {
	db     *sql.DB
	q      dbtx
	userID string
	inTx   bool
}

var (
	_ ledger.Store      = (*SQLiteRepository)(nil)
	_ ledger.Transactor = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between
	// the pool and open transactions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, q: db, userID: DefaultUser}, nil
}

// ForUser returns a view of the same database scoped to another user.
func (r *SQLiteRepository) ForUser(userID string) *SQLiteRepository {
	c := *r
	if userID != "" {
		c.userID = userID
	}
	return &c
}

// UserID returns the user the repository is scoped to.
func (r *SQLiteRepository) UserID() string { return r.userID }

// Ping checks that the database file is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil && !r.inTx {
		return r.db.Close()
	}
	return nil
}

// RunInTx runs fn inside a single database transaction. Nested calls reuse
// the outer transaction.
func (r *SQLiteRepository) RunInTx(ctx context.Context, fn func(tx ledger.Store) error) error {
	if r.inTx {
		return fn(r)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	scoped := &SQLiteRepository{db: r.db, q: tx, userID: r.userID, inTx: true}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) exec(ctx context.Context, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.q.ExecContext(ctx, query, args...)
}

func (r *SQLiteRepository) query(ctx context.Context, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.q.QueryContext(ctx, query, args...)
}

// execOne runs a write that must touch exactly one row.
func (r *SQLiteRepository) execOne(ctx context.Context, b sq.Sqlizer, kind, id string) error {
	res, err := r.exec(ctx, b)
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: rows affected: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ledger.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) scoped(f ledger.Filter) sq.And {
	where := sq.And{sq.Eq{"user_id": r.userID}}
	if !f.Range.From.IsZero() {
		where = append(where, sq.GtOrEq{"date": f.Range.From.Format(dateLayout)})
	}
	if !f.Range.To.IsZero() {
		where = append(where, sq.Lt{"date": f.Range.To.Format(dateLayout)})
	}
	if f.Category != "" {
		where = append(where, sq.Eq{"category": f.Category})
	}
	return where
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableMonth(m *core.Month) sql.NullString {
	if m == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: m.Key(), Valid: true}
}

func scanMonth(ns sql.NullString) (*core.Month, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	m, err := core.ParseMonth(ns.String)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func formatCents(c int64) string { return strconv.FormatInt(c, 10) }

func errNoRows(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, ledger.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}
