package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"despesas/internal/amqp"
	"despesas/internal/core"
	"despesas/internal/dashboard"
	"despesas/internal/log"
	"despesas/internal/report"
)

// Repository is the records store behind the service.
type Repository interface {
	CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
	ImportExpenses(ctx context.Context, batch []core.NewExpense) (int, error)
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
}

// Publisher announces record changes. It may be nil.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// ExpenseService orchestrates record operations across SQLite and AMQP
type ExpenseService struct {
	repo      Repository
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time
}

func NewExpenseService(repo Repository, publisher Publisher, logger *log.Logger) *ExpenseService {
	return &ExpenseService{
		repo:      repo,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentExpense),
		now:       time.Now,
	}
}

func (s *ExpenseService) today() string {
	return core.ISODate(s.now().UTC())
}

// normalizeDate applies the storage rules: blank means today, a valid
// DD/MM/YYYY date is rewritten as ISO. An invalid slash date becomes today
// when strict is set and is kept verbatim otherwise.
func (s *ExpenseService) normalizeDate(raw string, strict bool) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.today()
	}
	if !strings.Contains(raw, "/") {
		return raw
	}
	t, err := time.Parse("2/1/2006", raw)
	if err != nil {
		if strict {
			return s.today()
		}
		return raw
	}
	return core.ISODate(t)
}

// CreateExpense normalizes and stores a record, then announces it.
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	in = in.WithDefaults()
	if in.Description == "" {
		return core.Expense{}, core.ErrEmptyDescription
	}
	if len(in.Description) > 256 {
		return core.Expense{}, core.ErrDescriptionTooLong
	}
	in.Date = s.normalizeDate(in.Date, true)

	created, err := s.repo.CreateExpense(ctx, in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.NewChangeMessage(amqp.ChangeCreated, created.ID, 1))
	return created, nil
}

// DeleteExpense removes a record, then announces it.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.repo.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	s.publish(ctx, amqp.NewChangeMessage(amqp.ChangeDeleted, id, 1))
	return nil
}

// ListExpenses returns all records, newest first.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx)
}

// ImportCSV stores every row of an uploaded CSV that can be stored and
// returns how many were.
func (s *ExpenseService) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	rows, err := report.ReadCSV(r)
	if err != nil {
		return 0, fmt.Errorf("read csv: %w", err)
	}

	batch := make([]core.NewExpense, 0, len(rows))
	for _, row := range rows {
		e := core.NewExpense{
			Description: row.Description,
			Amount:      core.SanitizeAmount(row.Amount),
			Category:    row.Category,
		}.WithDefaults()
		e.Date = s.normalizeDate(row.Date, false)
		batch = append(batch, e)
	}

	n, err := s.repo.ImportExpenses(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("import expenses: %w", err)
	}
	s.logger.InfoContext(ctx, "CSV imported",
		log.FieldOperation, log.OpImport,
		log.FieldCount, n,
		"rows", len(rows))

	if n > 0 {
		s.publish(ctx, amqp.NewChangeMessage(amqp.ChangeImported, "", n))
	}
	return n, nil
}

// Predict fits the monthly totals of all records. It returns nil with fewer
// than two months. Negative predictions are clamped to zero.
func (s *ExpenseService) Predict(ctx context.Context) (*core.RemoteForecast, error) {
	records, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	months := dashboard.GroupByMonth(records)
	fit := dashboard.Forecast(months)
	if fit == nil {
		return nil, nil
	}
	predicted := fit.Predicted
	if predicted < 0 {
		predicted = 0
	}
	return &core.RemoteForecast{
		Predicted: predicted,
		Coef:      fit.Slope,
		Intercept: fit.Intercept,
		Months:    months,
	}, nil
}

// ExportCSV writes every record as CSV.
func (s *ExpenseService) ExportCSV(ctx context.Context, w io.Writer) error {
	records, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	return report.WriteCSV(w, records)
}

// Report writes the PDF report of every record.
func (s *ExpenseService) Report(ctx context.Context, w io.Writer) error {
	records, err := s.repo.ListExpenses(ctx)
	if err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	return report.WritePDF(w, records, s.now())
}

func (s *ExpenseService) publish(ctx context.Context, msg *amqp.ChangeMessage) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping change message",
			log.FieldEvent, msg.Kind)
		return
	}
	// The write already succeeded; a lost event only delays dashboards until
	// their next periodic refresh.
	if err := s.publisher.PublishChange(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, msg.Kind,
			log.FieldError, err)
	}
}

// Close closes the storage and AMQP connections when they support it
func (s *ExpenseService) Close() error {
	var errs []error
	if c, ok := s.repo.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok && c != nil {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
