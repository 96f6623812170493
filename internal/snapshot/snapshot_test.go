package snapshot_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/snapshot"
)

type fakeClient struct {
	tasks []*asynq.Task
	err   error
}

func (c *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.tasks = append(c.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]snapshot.Record
	err     error
}

func (m *memoryStore) Save(_ context.Context, rec snapshot.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.records == nil {
		m.records = map[string]snapshot.Record{}
	}
	if prev, ok := m.records[rec.SessionID]; ok && !prev.ArchivedAt.Before(rec.ArchivedAt) {
		return nil
	}
	m.records[rec.SessionID] = rec
	return nil
}

func (m *memoryStore) Latest(_ context.Context, sessionID string) (snapshot.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[sessionID]
	if !ok {
		return snapshot.Record{}, snapshot.ErrNotFound
	}
	return rec, nil
}

func sampleStore(t *testing.T) *cart.Store {
	t.Helper()
	st := cart.NewStore()
	require.NoError(t, st.AddItem(catalog.Product{ID: "p1", Name: "Notebook", OriginalPrice: decimal.NewFromInt(100), Discount: catalog.Percent(10), Stock: 3}))
	res, err := st.ApplyVoucher(context.Background(), "SAVE10")
	require.NoError(t, err)
	require.True(t, res.Success)
	return st
}

func TestEnqueueThenProcess(t *testing.T) {
	st := sampleStore(t)
	client := &fakeClient{}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	enq := snapshot.Enqueuer{Client: client, Now: func() time.Time { return at }}

	require.NoError(t, enq.Enqueue(context.Background(), "sess-1", st.Snapshot(), st.Summary()))
	require.Len(t, client.tasks, 1)
	require.Equal(t, snapshot.TypeArchive, client.tasks[0].Type())

	store := &memoryStore{}
	proc := snapshot.Processor{Store: store}
	require.NoError(t, proc.ProcessTask(context.Background(), client.tasks[0]))

	rec, err := store.Latest(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, rec.TotalItems)
	require.Equal(t, "90.00", rec.NonDealSubtotal)
	require.Equal(t, "9.00", rec.VoucherDiscount)
	require.Equal(t, "81.00", rec.Total)
	require.Equal(t, at, rec.ArchivedAt)
	require.NotNil(t, rec.Snapshot.AppliedVoucher)
	require.Equal(t, "SAVE10", rec.Snapshot.AppliedVoucher.Code)
}

func TestEnqueueRequiresClient(t *testing.T) {
	err := snapshot.Enqueuer{}.Enqueue(context.Background(), "sess-1", cart.Snapshot{}, cart.NewStore().Summary())
	require.Error(t, err)
}

func TestEnqueueRequiresSession(t *testing.T) {
	err := snapshot.Enqueuer{Client: &fakeClient{}}.Enqueue(context.Background(), "", cart.Snapshot{}, cart.NewStore().Summary())
	require.Error(t, err)
}

func TestProcessorSkipsMalformedPayload(t *testing.T) {
	proc := snapshot.Processor{Store: &memoryStore{}}
	err := proc.ProcessTask(context.Background(), asynq.NewTask(snapshot.TypeArchive, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestProcessorRetriesStoreFailure(t *testing.T) {
	st := sampleStore(t)
	task, err := snapshot.NewTask(snapshot.NewRecord("sess-1", st.Snapshot(), st.Summary(), time.Now()))
	require.NoError(t, err)

	proc := snapshot.Processor{Store: &memoryStore{err: errors.New("db down")}}
	err = proc.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestHandlerLatest(t *testing.T) {
	st := sampleStore(t)
	store := &memoryStore{}
	require.NoError(t, store.Save(context.Background(), snapshot.NewRecord("sess-1", st.Snapshot(), st.Summary(), time.Now())))
	h := &snapshot.Handler{Store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart/archive", nil)
	req = req.WithContext(common.WithSessionID(req.Context(), "sess-1"))
	rec := httptest.NewRecorder()
	h.Latest(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data snapshot.Record `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "81.00", body.Data.Total)
	require.Len(t, body.Data.Snapshot.Items, 1)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cart/archive", nil)
	req = req.WithContext(common.WithSessionID(req.Context(), "sess-2"))
	rec = httptest.NewRecorder()
	h.Latest(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type execCall struct {
	sql  string
	args []any
}

type stubDB struct {
	execs []execCall
	row   pgx.Row
}

func (d *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (d *stubDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return d.row
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func TestRepositorySave(t *testing.T) {
	st := sampleStore(t)
	db := &stubDB{}
	repo := snapshot.Repository{DB: db}
	at := time.Now().UTC()
	require.NoError(t, repo.Save(context.Background(), snapshot.NewRecord("sess-1", st.Snapshot(), st.Summary(), at)))
	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	require.Equal(t, "sess-1", args[0])
	require.JSONEq(t, `{"items":[{"product":{"id":"p1","name":"Notebook","originalPrice":"100","discount":10,"isOnDeal":false,"stock":3},"quantity":1,"appliedCoupon":null}],"appliedVoucher":{"code":"SAVE10","discount":10}}`, string(args[1].([]byte)))
	require.Equal(t, "81.00", args[6])
}

func TestRepositoryLatestNotFound(t *testing.T) {
	repo := snapshot.Repository{DB: &stubDB{row: errRow{err: pgx.ErrNoRows}}}
	_, err := repo.Latest(context.Background(), "sess-1")
	require.ErrorIs(t, err, snapshot.ErrNotFound)
}
