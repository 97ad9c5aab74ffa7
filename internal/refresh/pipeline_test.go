package refresh

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"despesas/internal/core"
	"despesas/internal/log"
	"despesas/internal/store"
)

// fakeRemote is an in-memory records service.
type fakeRemote struct {
	mu        sync.Mutex
	records   []core.Expense
	forecast  *core.RemoteForecast
	nextID    int
	listErr   error
	predErr   error
	createErr error
	listGate  chan struct{} // when set, ListExpenses blocks until it is closed
	created   []core.NewExpense
}

func (f *fakeRemote) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	f.mu.Lock()
	gate := f.listGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Expense(nil), f.records...), nil
}

func (f *fakeRemote) Predict(ctx context.Context) (*core.RemoteForecast, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forecast, f.predErr
}

func (f *fakeRemote) CreateExpense(ctx context.Context, e core.NewExpense) (core.Expense, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return core.Expense{}, f.createErr
	}
	f.nextID++
	rec := core.Expense{ID: string(rune('0' + f.nextID)), Description: e.Description, Amount: e.Amount, Category: e.Category, Date: e.Date}
	f.records = append(f.records, rec)
	f.created = append(f.created, e)
	return rec, nil
}

var errNotFound = errors.New("not found")

func (f *fakeRemote) DeleteExpense(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.records {
		if r.ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (f *fakeRemote) ImportCSV(ctx context.Context, filename string, r io.Reader) (int, error) {
	data, _ := io.ReadAll(r)
	if len(data) == 0 {
		return 0, errors.New("empty file")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, core.Expense{ID: "imp", Description: "imported", Amount: core.Money{Cents: 100}, Category: "Geral", Date: "2024-05-01"})
	return 1, nil
}

func (f *fakeRemote) ExportCSV(ctx context.Context, w io.Writer) error {
	_, err := io.WriteString(w, "id,description,amount,category,date\n")
	return err
}

func (f *fakeRemote) Report(ctx context.Context, w io.Writer) error {
	return errors.New("report unavailable")
}

func (f *fakeRemote) setRecords(recs ...core.Expense) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = recs
}

func rec(id string, cents int64) core.Expense {
	return core.Expense{ID: id, Description: "d" + id, Amount: core.Money{Cents: cents}, Category: "Geral", Date: "2024-05-01"}
}

func newPipeline(remote *fakeRemote) (*Pipeline, *store.Store) {
	st := store.New()
	return New(remote, st, log.Discard()), st
}

func TestRefreshReplacesSnapshot(t *testing.T) {
	remote := &fakeRemote{forecast: &core.RemoteForecast{Predicted: 42}}
	remote.setRecords(rec("1", 100), rec("2", 200))
	p, st := newPipeline(remote)

	assert.False(t, p.Ready())
	require.NoError(t, p.Refresh(context.Background()))
	assert.True(t, p.Ready())

	snap := st.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Records, 2)
	require.NotNil(t, snap.RemoteForecast)
	assert.Equal(t, 42.0, snap.RemoteForecast.Predicted)
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	remote := &fakeRemote{}
	remote.setRecords(rec("1", 100))
	p, st := newPipeline(remote)
	require.NoError(t, p.Refresh(context.Background()))

	remote.mu.Lock()
	remote.listErr = errors.New("connection refused")
	remote.mu.Unlock()

	err := p.Refresh(context.Background())
	require.Error(t, err)
	snap := st.Snapshot()
	assert.Equal(t, uint64(1), snap.Generation)
	assert.Len(t, snap.Records, 1)
}

func TestForecastFailureKeepsPreviousForecast(t *testing.T) {
	remote := &fakeRemote{forecast: &core.RemoteForecast{Predicted: 7}}
	remote.setRecords(rec("1", 100))
	p, st := newPipeline(remote)
	require.NoError(t, p.Refresh(context.Background()))

	remote.mu.Lock()
	remote.predErr = errors.New("boom")
	remote.forecast = nil
	remote.mu.Unlock()
	remote.setRecords(rec("1", 100), rec("2", 300))

	require.NoError(t, p.Refresh(context.Background()))
	snap := st.Snapshot()
	assert.Len(t, snap.Records, 2, "records are committed even when the forecast fails")
	require.NotNil(t, snap.RemoteForecast)
	assert.Equal(t, 7.0, snap.RemoteForecast.Predicted)
}

func TestDeleteUnknownIDThenRefreshMatchesRemote(t *testing.T) {
	remote := &fakeRemote{}
	remote.setRecords(rec("1", 100), rec("2", 200))
	p, st := newPipeline(remote)
	require.NoError(t, p.Refresh(context.Background()))

	err := p.Delete(context.Background(), "99")
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, log.OpDelete, ae.Op)
	assert.ErrorIs(t, err, errNotFound)

	require.NoError(t, p.Refresh(context.Background()))
	remoteRecords, _ := remote.ListExpenses(context.Background())
	assert.Equal(t, remoteRecords, st.Snapshot().Records)
}

func TestDeleteRefreshes(t *testing.T) {
	remote := &fakeRemote{}
	remote.setRecords(rec("1", 100), rec("2", 200))
	p, st := newPipeline(remote)
	require.NoError(t, p.Refresh(context.Background()))

	require.NoError(t, p.Delete(context.Background(), "1"))
	snap := st.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "2", snap.Records[0].ID)
}

func TestCreate(t *testing.T) {
	remote := &fakeRemote{}
	p, st := newPipeline(remote)

	created, err := p.Create(context.Background(), core.NewExpense{Description: " Mercado ", Amount: core.Money{Cents: 1250}})
	require.NoError(t, err)
	assert.Equal(t, "Mercado", created.Description)
	assert.Equal(t, core.DefaultCategory, created.Category)
	assert.Equal(t, 1, st.Len())

	_, err = p.Create(context.Background(), core.NewExpense{Description: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	assert.Equal(t, 1, st.Len())
}

func TestCreateFailureLeavesStoreUntouched(t *testing.T) {
	remote := &fakeRemote{createErr: errors.New("502")}
	remote.setRecords(rec("1", 100))
	p, st := newPipeline(remote)
	require.NoError(t, p.Refresh(context.Background()))

	_, err := p.Create(context.Background(), core.NewExpense{Description: "x", Amount: core.Money{Cents: 1}})
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, uint64(1), st.Generation())
}

func TestInFlightRejectsSameTarget(t *testing.T) {
	p, _ := newPipeline(&fakeRemote{})
	require.True(t, p.begin("delete:1"))
	defer p.end("delete:1")

	err := p.Delete(context.Background(), "1")
	assert.ErrorIs(t, err, ErrInFlight)

	// a different target is not blocked
	err = p.Delete(context.Background(), "2")
	assert.ErrorIs(t, err, errNotFound)
}

func TestSupersededRefreshIsDropped(t *testing.T) {
	remote := &fakeRemote{}
	remote.setRecords(rec("old", 100))
	gate := make(chan struct{})
	remote.listGate = gate
	p, st := newPipeline(remote)

	slow := make(chan error, 1)
	go func() { slow <- p.Refresh(context.Background()) }()

	// wait until the slow refresh has taken its ticket
	require.Eventually(t, func() bool { return p.tickets.Load() == 1 }, time.Second, time.Millisecond)

	remote.mu.Lock()
	remote.listGate = nil
	remote.records = []core.Expense{rec("new", 200)}
	remote.mu.Unlock()
	require.NoError(t, p.Refresh(context.Background()))

	close(gate)
	assert.ErrorIs(t, <-slow, ErrSuperseded)
	snap := st.Snapshot()
	require.Len(t, snap.Records, 1)
	assert.Equal(t, "new", snap.Records[0].ID)
	assert.Equal(t, uint64(1), snap.Generation)
}

func TestImportExportReport(t *testing.T) {
	remote := &fakeRemote{}
	p, st := newPipeline(remote)

	n, err := p.Import(context.Background(), "a.csv", bytes.NewBufferString("description,amount\nx,1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, st.Len())

	_, err = p.Import(context.Background(), "a.csv", bytes.NewBuffer(nil))
	var ae *ActionError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, log.OpImport, ae.Op)

	var buf bytes.Buffer
	require.NoError(t, p.Export(context.Background(), &buf))
	assert.Contains(t, buf.String(), "id,description")

	err = p.Report(context.Background(), &buf)
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, log.OpReport, ae.Op)
}

func TestOnCommitHook(t *testing.T) {
	remote := &fakeRemote{}
	p, _ := newPipeline(remote)
	var got []uint64
	p.OnCommit(func(gen uint64) { got = append(got, gen) })

	require.NoError(t, p.Refresh(context.Background()))
	require.NoError(t, p.Refresh(context.Background()))
	assert.Equal(t, []uint64{1, 2}, got)
}

func TestChangesRefreshesOnEvents(t *testing.T) {
	remote := &fakeRemote{}
	remote.setRecords(rec("1", 100))
	p, st := newPipeline(remote)

	events := make(chan struct{}, 4)
	events <- struct{}{}
	events <- struct{}{}
	close(events)

	require.NoError(t, p.Changes(context.Background(), events))
	assert.Equal(t, 1, st.Len())
	assert.True(t, p.Ready())
}
