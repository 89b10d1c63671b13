package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/internal/invoice"
	"github.com/garyjia/expense-audit/internal/report"
)

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memBatchRepo keeps batches in memory
type memBatchRepo struct {
	mu      sync.Mutex
	batches map[string]entity.Batch
}

func newMemBatchRepo(batches ...*entity.Batch) *memBatchRepo {
	r := &memBatchRepo{batches: make(map[string]entity.Batch)}
	for _, b := range batches {
		r.batches[b.ID] = *b
	}
	return r
}

func (r *memBatchRepo) Create(ctx context.Context, batch *entity.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch.CreatedAt = time.Now()
	batch.UpdatedAt = batch.CreatedAt
	r.batches[batch.ID] = *batch
	return nil
}

func (r *memBatchRepo) GetByID(ctx context.Context, id string) (*entity.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, fmt.Errorf("batch %s: %w", id, entity.ErrNotFound)
	}
	return &b, nil
}

func (r *memBatchRepo) List(ctx context.Context, limit, offset int) ([]*entity.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*entity.Batch, 0, len(r.batches))
	for _, b := range r.batches {
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*entity.Batch{}, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (r *memBatchRepo) SetApplicationRange(ctx context.Context, id, start, end string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return fmt.Errorf("batch %s: %w", id, entity.ErrNotFound)
	}
	b.ApplicationStart, b.ApplicationEnd = start, end
	r.batches[id] = b
	return nil
}

// memItemRepo keeps items in memory in insertion order
type memItemRepo struct {
	mu    sync.Mutex
	order []string
	items map[string]entity.BatchItem
	saves int
}

func newMemItemRepo(items ...*entity.BatchItem) *memItemRepo {
	r := &memItemRepo{items: make(map[string]entity.BatchItem)}
	for _, it := range items {
		r.order = append(r.order, it.ID)
		r.items[it.ID] = *it
	}
	return r
}

func (r *memItemRepo) Create(ctx context.Context, item *entity.BatchItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.Status == "" {
		item.Status = entity.ItemStatusPending
	}
	r.order = append(r.order, item.ID)
	r.items[item.ID] = *item
	return nil
}

func (r *memItemRepo) GetByID(ctx context.Context, id string) (*entity.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
	}
	return &it, nil
}

func (r *memItemRepo) ListByBatch(ctx context.Context, batchID string) ([]*entity.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.BatchItem
	for _, id := range r.order {
		if it := r.items[id]; it.BatchID == batchID {
			out = append(out, &it)
		}
	}
	return out, nil
}

func (r *memItemRepo) ClaimPending(ctx context.Context, batchID string, limit int) ([]*entity.BatchItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.BatchItem
	for _, id := range r.order {
		it := r.items[id]
		if it.Status != entity.ItemStatusPending || (batchID != "" && it.BatchID != batchID) {
			continue
		}
		if len(out) == limit {
			break
		}
		it.Status = entity.ItemStatusProcessing
		r.items[id] = it
		out = append(out, &it)
	}
	return out, nil
}

func (r *memItemRepo) Requeue(ctx context.Context, batchID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, it := range r.items {
		if it.BatchID == batchID && it.Status == entity.ItemStatusError {
			it.Status = entity.ItemStatusPending
			it.Error = ""
			r.items[id] = it
			n++
		}
	}
	return n, nil
}

func (r *memItemRepo) ResetProcessing(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, it := range r.items {
		if it.Status == entity.ItemStatusProcessing {
			it.Status = entity.ItemStatusPending
			r.items[id] = it
			n++
		}
	}
	return n, nil
}

func (r *memItemRepo) SaveResult(ctx context.Context, item *entity.BatchItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[item.ID]; !ok {
		return fmt.Errorf("item %s: %w", item.ID, entity.ErrNotFound)
	}
	r.items[item.ID] = *item
	r.saves++
	return nil
}

func (r *memItemRepo) UpdateRefundStatus(ctx context.Context, id string, status entity.RefundStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, entity.ErrNotFound)
	}
	it.RefundStatus = status
	r.items[id] = it
	return nil
}

func (r *memItemRepo) get(id string) entity.BatchItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

// memStorage keeps documents in memory
type memStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{files: make(map[string][]byte)}
}

func (s *memStorage) Save(ctx context.Context, key string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[key] = append([]byte(nil), content...)
	return nil
}

func (s *memStorage) Read(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, entity.ErrNotFound)
	}
	return data, nil
}

func (s *memStorage) Exists(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[key]
	return ok
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, key)
	return nil
}

func (s *memStorage) Location(key string) string {
	return "mem://" + key
}

// mockOracle records oracle calls
type mockOracle struct {
	mock.Mock
}

func (m *mockOracle) ExtractInvoice(ctx context.Context, req port.OracleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) ExtractDiningApplication(ctx context.Context, req port.OracleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockOracle) Classify(ctx context.Context, req port.OracleRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type stubRenderer struct {
	err error
}

func (r *stubRenderer) Render(data []byte, mimeType string) ([]invoice.Page, error) {
	if r.err != nil {
		return nil, r.err
	}
	return []invoice.Page{{Data: data, MimeType: invoice.MimeJPEG}}, nil
}

type stubProviders map[string]string

func (p stubProviders) IsValid(key string) bool {
	_, ok := p[key]
	return ok
}

func (p stubProviders) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p stubProviders) DefaultModel(key string) string {
	return p[key]
}

func testProviders() stubProviders {
	return stubProviders{
		"siliconflow": "Qwen/Qwen3-VL-32B-Instruct",
		"openrouter":  "openrouter/free",
	}
}

// memUsageRepo keeps usage events in memory
type memUsageRepo struct {
	mu     sync.Mutex
	events []port.UsageEvent
}

func (r *memUsageRepo) Insert(ctx context.Context, rec entity.UsageRecord, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, port.UsageEvent{UsageRecord: rec, CreatedAt: at})
	return nil
}

func (r *memUsageRepo) ListAll(ctx context.Context) ([]port.UsageEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]port.UsageEvent(nil), r.events...), nil
}

func (r *memUsageRepo) SumByBatch(ctx context.Context, batchID string) (entity.UsageBucket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var b entity.UsageBucket
	for _, ev := range r.events {
		if ev.BatchID == batchID {
			b.Add(ev.PromptTokens, ev.CompletionTokens)
		}
	}
	return b, nil
}

func (r *memUsageRepo) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	return nil
}

// memModelHistory keeps per-provider model lists, most recent first
type memModelHistory struct {
	mu     sync.Mutex
	models map[string][]string
}

func newMemModelHistory() *memModelHistory {
	return &memModelHistory{models: make(map[string][]string)}
}

func (r *memModelHistory) List(ctx context.Context, provider string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.models[provider]...), nil
}

func (r *memModelHistory) Touch(ctx context.Context, provider, model string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := []string{model}
	for _, m := range r.models[provider] {
		if m != model {
			list = append(list, m)
		}
	}
	if len(list) > keep {
		list = list[:keep]
	}
	r.models[provider] = list
	return nil
}

func (r *memModelHistory) Remove(ctx context.Context, provider, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var list []string
	for _, m := range r.models[provider] {
		if m != model {
			list = append(list, m)
		}
	}
	r.models[provider] = list
	return nil
}

type mockMessageSender struct {
	sendTextFunc func(ctx context.Context, chatID, text string) error
	sent         []string
}

func (m *mockMessageSender) SendText(ctx context.Context, chatID, text string) error {
	if m.sendTextFunc != nil {
		if err := m.sendTextFunc(ctx, chatID, text); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, text)
	return nil
}

type recordingWriter struct {
	workbook report.TravelWorkbook
}

func (w *recordingWriter) WriteTravelReport(out io.Writer, wb report.TravelWorkbook) error {
	w.workbook = wb
	_, err := io.WriteString(out, "xlsx")
	return err
}

type stubCatalog struct {
	models []string
	err    error
}

func (c *stubCatalog) FreeVisionModels(ctx context.Context) ([]string, error) {
	return c.models, c.err
}
