// Package refresh keeps the dashboard's store in sync with the records
// service and runs the user's mutating actions against it.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"despesas/internal/core"
	"despesas/internal/log"
	"despesas/internal/store"
)

var (
	// ErrSuperseded means a newer refresh committed first and this one's
	// results were dropped.
	ErrSuperseded = errors.New("refresh superseded by a newer request")
	// ErrInFlight means the same action on the same target is still running.
	ErrInFlight = errors.New("operation already in progress")
)

// Remote is the records service as seen by the pipeline.
type Remote interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	Predict(ctx context.Context) (*core.RemoteForecast, error)
	CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	ImportCSV(ctx context.Context, filename string, r io.Reader) (int, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Report(ctx context.Context, w io.Writer) error
}

// ActionError is returned by user-initiated actions. The store is unchanged
// when one is returned.
type ActionError struct {
	Op  string
	Err error
}

func (e *ActionError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *ActionError) Unwrap() error { return e.Err }

// Pipeline is the only writer of the store.
type Pipeline struct {
	remote Remote
	store  *store.Store
	logger *log.Logger

	tickets   atomic.Uint64
	commitMu  sync.Mutex
	committed uint64

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	lastSuccess atomic.Int64

	hooksMu sync.RWMutex
	hooks   []func(generation uint64)
}

func New(remote Remote, st *store.Store, logger *log.Logger) *Pipeline {
	return &Pipeline{
		remote:   remote,
		store:    st,
		logger:   logger.WithComponent(log.ComponentRefresh),
		inflight: make(map[string]struct{}),
	}
}

// OnCommit registers fn to run after every committed refresh.
func (p *Pipeline) OnCommit(fn func(generation uint64)) {
	p.hooksMu.Lock()
	defer p.hooksMu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Ready reports whether at least one refresh has committed.
func (p *Pipeline) Ready() bool {
	return p.lastSuccess.Load() != 0
}

// LastSuccess returns when the last refresh committed.
func (p *Pipeline) LastSuccess() time.Time {
	ns := p.lastSuccess.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Refresh fetches the records, then the forecast, then replaces the
// snapshot. When the record fetch fails the snapshot is left alone. When only
// the forecast fetch fails the records are still committed and the previous
// forecast is kept.
func (p *Pipeline) Refresh(ctx context.Context) error {
	ticket := p.tickets.Add(1)
	start := time.Now()

	records, err := p.remote.ListExpenses(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "Failed to fetch records, keeping snapshot",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, err)
		return fmt.Errorf("fetch records: %w", err)
	}

	forecast, ferr := p.remote.Predict(ctx)
	if ferr != nil {
		p.logger.WarnContext(ctx, "Failed to fetch remote forecast, keeping previous one",
			log.FieldOperation, log.OpRefresh,
			log.FieldError, ferr)
	}

	p.commitMu.Lock()
	if ticket < p.committed {
		p.commitMu.Unlock()
		p.logger.DebugContext(ctx, "Dropping superseded refresh",
			"ticket", ticket)
		return ErrSuperseded
	}
	p.committed = ticket
	var gen uint64
	if ferr != nil {
		gen = p.store.Replace(records)
	} else {
		gen = p.store.Commit(records, forecast)
	}
	p.commitMu.Unlock()

	p.lastSuccess.Store(time.Now().UnixNano())
	p.logger.DebugContext(ctx, "Snapshot replaced",
		log.FieldGeneration, gen,
		log.FieldCount, len(records),
		log.FieldDuration, time.Since(start).Milliseconds())

	p.hooksMu.RLock()
	hooks := p.hooks
	p.hooksMu.RUnlock()
	for _, fn := range hooks {
		fn(gen)
	}
	return nil
}

// refreshAfter runs Refresh after a successful mutation. Its failure does not
// undo the mutation so it is only logged.
func (p *Pipeline) refreshAfter(ctx context.Context, op string) {
	if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		p.logger.WarnContext(ctx, "Refresh after action failed",
			log.FieldOperation, op,
			log.FieldError, err)
	}
}

func (p *Pipeline) begin(key string) bool {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()
	if _, busy := p.inflight[key]; busy {
		return false
	}
	p.inflight[key] = struct{}{}
	return true
}

func (p *Pipeline) end(key string) {
	p.inflightMu.Lock()
	defer p.inflightMu.Unlock()
	delete(p.inflight, key)
}

// Create validates and sends a new record, then refreshes.
func (p *Pipeline) Create(ctx context.Context, in core.NewExpense) (core.Expense, error) {
	const op = log.OpCreate
	in = in.WithDefaults()
	if err := in.Validate(); err != nil {
		return core.Expense{}, &ActionError{Op: op, Err: err}
	}
	if !p.begin(op) {
		return core.Expense{}, &ActionError{Op: op, Err: ErrInFlight}
	}
	defer p.end(op)

	created, err := p.remote.CreateExpense(ctx, in)
	if err != nil {
		p.logger.ErrorContext(ctx, "Create failed",
			log.FieldOperation, op,
			log.FieldError, err)
		return core.Expense{}, &ActionError{Op: op, Err: err}
	}
	p.logger.InfoContext(ctx, "Expense created",
		log.FieldExpenseID, created.ID,
		log.FieldAmountCents, created.Amount.Cents,
		log.FieldCategory, created.Category)

	p.refreshAfter(ctx, op)
	return created, nil
}

// Delete removes a record, then refreshes. The local snapshot is never
// touched directly; an id that the service does not know fails and leaves
// the snapshot as it was.
func (p *Pipeline) Delete(ctx context.Context, id string) error {
	const op = log.OpDelete
	if id == "" {
		return &ActionError{Op: op, Err: errors.New("empty id")}
	}
	key := op + ":" + id
	if !p.begin(key) {
		return &ActionError{Op: op, Err: ErrInFlight}
	}
	defer p.end(key)

	if err := p.remote.DeleteExpense(ctx, id); err != nil {
		p.logger.ErrorContext(ctx, "Delete failed",
			log.FieldExpenseID, id,
			log.FieldError, err)
		return &ActionError{Op: op, Err: err}
	}
	p.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id)

	p.refreshAfter(ctx, op)
	return nil
}

// Import uploads a CSV batch, then refreshes.
func (p *Pipeline) Import(ctx context.Context, filename string, r io.Reader) (int, error) {
	const op = log.OpImport
	if !p.begin(op) {
		return 0, &ActionError{Op: op, Err: ErrInFlight}
	}
	defer p.end(op)

	n, err := p.remote.ImportCSV(ctx, filename, r)
	if err != nil {
		p.logger.ErrorContext(ctx, "Import failed",
			log.FieldError, err)
		return 0, &ActionError{Op: op, Err: err}
	}
	p.logger.InfoContext(ctx, "CSV imported", log.FieldCount, n)

	p.refreshAfter(ctx, op)
	return n, nil
}

// Export writes the service's CSV export to w.
func (p *Pipeline) Export(ctx context.Context, w io.Writer) error {
	if err := p.remote.ExportCSV(ctx, w); err != nil {
		return &ActionError{Op: log.OpExport, Err: err}
	}
	return nil
}

// Report writes the service's PDF report to w.
func (p *Pipeline) Report(ctx context.Context, w io.Writer) error {
	if err := p.remote.Report(ctx, w); err != nil {
		return &ActionError{Op: log.OpReport, Err: err}
	}
	return nil
}

// Changes refreshes once per received event until ctx is done or events is
// closed. Events that arrive while a refresh runs are coalesced.
func (p *Pipeline) Changes(ctx context.Context, events <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-events:
			if !ok {
				return nil
			}
			drain(events)
			if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				p.logger.WarnContext(ctx, "Event-driven refresh failed", log.FieldError, err)
			}
		}
	}
}

// Every refreshes on a fixed interval until ctx is done.
func (p *Pipeline) Every(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				p.logger.WarnContext(ctx, "Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}

func drain(events <-chan struct{}) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}
