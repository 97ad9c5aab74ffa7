// Package storage persists expense records and user preferences in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"despesas/internal/core"
	"despesas/internal/log"

	_ "modernc.org/sqlite"
)

var (
	ErrNotFound  = errors.New("expense not found")
	ErrInvalidID = errors.New("invalid expense id")
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Info("SQLite database ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r != nil && r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toCore(e Expense) core.Expense {
	return core.Expense{
		ID:          strconv.FormatInt(e.ID, 10),
		Description: e.Description,
		Amount:      core.Money{Cents: e.AmountCents},
		Category:    e.Category,
		Date:        e.Date,
	}
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return n, nil
}

// CreateExpense stores e as given. Normalization is the caller's job.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		Description: e.Description,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Date:        e.Date,
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved to SQLite",
		log.FieldExpenseID, row.ID,
		log.FieldAmountCents, row.AmountCents,
		log.FieldCategory, row.Category)

	return toCore(row), nil
}

// ImportExpenses stores a batch in one transaction. Rows that fail to insert
// are skipped; the number stored is returned.
func (r *SQLiteRepository) ImportExpenses(ctx context.Context, batch []core.NewExpense) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	imported := 0
	for i, e := range batch {
		_, err := q.CreateExpense(ctx, CreateExpenseParams{
			Description: e.Description,
			AmountCents: e.Amount.Cents,
			Category:    e.Category,
			Date:        e.Date,
		})
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping import row",
				"row", i+1,
				log.FieldError, err)
			continue
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	return imported, nil
}

// ListExpenses returns every record, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.queries.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, len(rows))
	for i, e := range rows {
		out[i] = toCore(e)
	}
	return out, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	n, err := parseID(id)
	if err != nil {
		return core.Expense{}, err
	}
	row, err := r.queries.GetExpense(ctx, n)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return toCore(row), nil
}

// DeleteExpense removes a record. Unknown ids return ErrNotFound.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	affected, err := r.queries.DeleteExpense(ctx, n)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) CountExpenses(ctx context.Context) (int64, error) {
	n, err := r.queries.CountExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

// GetPreference returns the stored value for key and whether it exists.
func (r *SQLiteRepository) GetPreference(ctx context.Context, key string) (string, bool, error) {
	v, err := r.queries.GetPreference(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return v, true, nil
}

func (r *SQLiteRepository) SetPreference(ctx context.Context, key, value string) error {
	if err := r.queries.UpsertPreference(ctx, key, value); err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
