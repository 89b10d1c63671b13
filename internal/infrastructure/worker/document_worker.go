package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
	"github.com/garyjia/expense-audit/pkg/workerpool"
)

// ItemProcessor runs one claimed item through extraction and audit
type ItemProcessor interface {
	ProcessItem(ctx context.Context, item *entity.BatchItem, apiKey string) error
}

// BatchNotifier announces batches whose items are all processed
type BatchNotifier interface {
	NotifyIfComplete(ctx context.Context, batchID string) (bool, error)
}

// DocumentWorkerConfig holds configuration for the document worker
type DocumentWorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	Concurrency  int
}

// DefaultDocumentWorkerConfig returns default configuration
func DefaultDocumentWorkerConfig() DocumentWorkerConfig {
	return DocumentWorkerConfig{
		PollInterval: 5 * time.Second,
		BatchSize:    10,
		Concurrency:  workerpool.DefaultConcurrency,
	}
}

// WorkerStats is a snapshot of the worker counters
type WorkerStats struct {
	Running   bool      `json:"running"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	LastPoll  time.Time `json:"last_poll"`
	LastError string    `json:"last_error,omitempty"`
}

// DocumentWorker claims pending batch items and processes them in the
// background with a bounded pool
type DocumentWorker struct {
	config    DocumentWorkerConfig
	itemRepo  port.BatchItemRepository
	processor ItemProcessor
	notifier  BatchNotifier
	logger    *zap.Logger

	wake chan struct{}
	done chan struct{}

	mu             sync.RWMutex
	cancel         context.CancelFunc
	isRunning      bool
	lastPoll       time.Time
	processedCount int
	failedCount    int
	lastError      error
}

// NewDocumentWorker creates a new document worker. notifier may be nil.
func NewDocumentWorker(
	config DocumentWorkerConfig,
	itemRepo port.BatchItemRepository,
	processor ItemProcessor,
	notifier BatchNotifier,
	logger *zap.Logger,
) *DocumentWorker {
	defaults := DefaultDocumentWorkerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &DocumentWorker{
		config:    config,
		itemRepo:  itemRepo,
		processor: processor,
		notifier:  notifier,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Start recovers items interrupted by a previous run and begins polling
func (w *DocumentWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("document worker already running")
	}

	n, err := w.itemRepo.ResetProcessing(ctx)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("reset interrupted items: %w", err)
	}
	if n > 0 {
		w.logger.Info("Requeued interrupted items", zap.Int("count", n))
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.mu.Unlock()

	w.logger.Info("DocumentWorker started",
		zap.Duration("poll_interval", w.config.PollInterval),
		zap.Int("batch_size", w.config.BatchSize),
		zap.Int("concurrency", w.config.Concurrency))

	go w.pollLoop(loopCtx, w.done)
	return nil
}

// Stop cancels polling and waits for in-flight items to finish
func (w *DocumentWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	stats := w.Stats()
	w.logger.Info("DocumentWorker stopped",
		zap.Int("processed_count", stats.Processed),
		zap.Int("failed_count", stats.Failed))
	return nil
}

// Name returns the worker name for identification
func (w *DocumentWorker) Name() string {
	return "DocumentWorker"
}

// Trigger asks the worker to poll now instead of waiting for the next tick
func (w *DocumentWorker) Trigger() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stats returns the worker counters
func (w *DocumentWorker) Stats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	stats := WorkerStats{
		Running:   w.isRunning,
		Processed: w.processedCount,
		Failed:    w.failedCount,
		LastPoll:  w.lastPoll,
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	return stats
}

func (w *DocumentWorker) pollLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-w.wake:
		}

		// Drain full claims before waiting again
		for ctx.Err() == nil {
			n, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Error("Failed to process pending items", zap.Error(err))
			}
			if err != nil || n < w.config.BatchSize {
				break
			}
		}
	}
}

// RunOnce claims one round of pending items, processes them and notifies
// finished batches. It returns the number of items claimed.
func (w *DocumentWorker) RunOnce(ctx context.Context) (int, error) {
	items, err := w.itemRepo.ClaimPending(ctx, "", w.config.BatchSize)

	w.mu.Lock()
	w.lastPoll = time.Now()
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		return 0, fmt.Errorf("claim pending items: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	w.logger.Debug("Claimed items", zap.Int("count", len(items)))

	var (
		mu      sync.Mutex
		batches = make(map[string]struct{})
	)
	workerpool.RunConcurrent(ctx, items, w.config.Concurrency, func(ctx context.Context, item *entity.BatchItem) {
		// Left in processing; the next Start requeues it.
		if ctx.Err() != nil {
			return
		}
		err := w.processor.ProcessItem(ctx, item, "")

		mu.Lock()
		batches[item.BatchID] = struct{}{}
		mu.Unlock()

		w.mu.Lock()
		if err != nil || item.Status != entity.ItemStatusSuccess {
			w.failedCount++
		} else {
			w.processedCount++
		}
		if err != nil {
			w.lastError = err
		}
		w.mu.Unlock()

		if err != nil {
			w.logger.Error("Failed to process item",
				zap.String("item_id", item.ID),
				zap.String("batch_id", item.BatchID),
				zap.Error(err))
		}
	})

	if w.notifier != nil {
		for batchID := range batches {
			if _, err := w.notifier.NotifyIfComplete(ctx, batchID); err != nil {
				w.logger.Warn("Batch notification failed",
					zap.String("batch_id", batchID),
					zap.Error(err))
			}
		}
	}
	return len(items), nil
}
