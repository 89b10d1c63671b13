package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

// fakeItemRepo implements the parts of port.BatchItemRepository the worker
// uses; the rest are no-ops
type fakeItemRepo struct {
	mu       sync.Mutex
	pending  []*entity.BatchItem
	resets   int
	claimErr error
}

func (r *fakeItemRepo) Create(ctx context.Context, item *entity.BatchItem) error { return nil }
func (r *fakeItemRepo) GetByID(ctx context.Context, id string) (*entity.BatchItem, error) {
	return nil, entity.ErrNotFound
}
func (r *fakeItemRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.BatchItem, error) {
	return nil, nil
}
func (r *fakeItemRepo) Requeue(ctx context.Context, batchID string) (int, error) { return 0, nil }
func (r *fakeItemRepo) SaveResult(ctx context.Context, item *entity.BatchItem) error {
	return nil
}
func (r *fakeItemRepo) UpdateRefundStatus(ctx context.Context, id string, status entity.RefundStatus) error {
	return nil
}

func (r *fakeItemRepo) ClaimPending(ctx context.Context, batchID string, limit int) ([]*entity.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimErr != nil {
		return nil, r.claimErr
	}
	n := min(limit, len(r.pending))
	claimed := r.pending[:n]
	r.pending = r.pending[n:]
	return claimed, nil
}

func (r *fakeItemRepo) ResetProcessing(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets++
	return 0, nil
}

func (r *fakeItemRepo) remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

type fakeProcessor struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (p *fakeProcessor) ProcessItem(ctx context.Context, item *entity.BatchItem, apiKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, item.ID)
	if p.fail[item.ID] {
		item.Status = entity.ItemStatusError
		return nil
	}
	item.Status = entity.ItemStatusSuccess
	return nil
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type fakeNotifier struct {
	mu      sync.Mutex
	batches []string
}

func (n *fakeNotifier) NotifyIfComplete(ctx context.Context, batchID string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, batchID)
	return true, nil
}

func pendingItems(ids ...string) []*entity.BatchItem {
	items := make([]*entity.BatchItem, 0, len(ids))
	for i, id := range ids {
		batch := "b-1"
		if i%2 == 1 {
			batch = "b-2"
		}
		items = append(items, &entity.BatchItem{ID: id, BatchID: batch, Status: entity.ItemStatusProcessing})
	}
	return items
}

func TestDocumentWorker_RunOnce(t *testing.T) {
	repo := &fakeItemRepo{pending: pendingItems("i-1", "i-2", "i-3")}
	processor := &fakeProcessor{fail: map[string]bool{"i-2": true}}
	notifier := &fakeNotifier{}
	w := NewDocumentWorker(DocumentWorkerConfig{BatchSize: 10, Concurrency: 2}, repo, processor, notifier, zap.NewNop())

	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.ElementsMatch(t, []string{"i-1", "i-2", "i-3"}, processor.seen)
	assert.ElementsMatch(t, []string{"b-1", "b-2"}, notifier.batches)

	stats := w.Stats()
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Failed)

	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDocumentWorker_ClaimError(t *testing.T) {
	repo := &fakeItemRepo{claimErr: errors.New("database is locked")}
	w := NewDocumentWorker(DocumentWorkerConfig{}, repo, &fakeProcessor{}, nil, zap.NewNop())

	_, err := w.RunOnce(context.Background())
	assert.Error(t, err)
	assert.Contains(t, w.Stats().LastError, "database is locked")
}

func TestDocumentWorker_Lifecycle(t *testing.T) {
	repo := &fakeItemRepo{pending: pendingItems("i-1", "i-2", "i-3", "i-4", "i-5")}
	processor := &fakeProcessor{}
	w := NewDocumentWorker(DocumentWorkerConfig{PollInterval: time.Hour, BatchSize: 2}, repo, processor, nil, zap.NewNop())

	require.NoError(t, w.Start(context.Background()))
	assert.Error(t, w.Start(context.Background()))
	assert.Equal(t, 1, repo.resets)

	w.Trigger()
	assert.Eventually(t, func() bool {
		return processor.count() == 5 && repo.remaining() == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, w.Stop())
	assert.False(t, w.Stats().Running)
	require.NoError(t, w.Stop())
}

type stubWorker struct {
	name     string
	startErr error
	log      *[]string
}

func (s *stubWorker) Start(ctx context.Context) error {
	*s.log = append(*s.log, "start "+s.name)
	return s.startErr
}

func (s *stubWorker) Stop() error {
	*s.log = append(*s.log, "stop "+s.name)
	return nil
}

func (s *stubWorker) Name() string { return s.name }

func TestWorkerManager(t *testing.T) {
	var log []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&stubWorker{name: "a", log: &log})
	m.Register(&stubWorker{name: "b", startErr: errors.New("no"), log: &log})
	m.Register(&stubWorker{name: "c", log: &log})
	assert.Equal(t, 3, m.WorkerCount())

	err := m.StartAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: no")
	assert.True(t, m.IsRunning())
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start a", "start b", "start c", "stop c", "stop a"}, log)
}
