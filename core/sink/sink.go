// Package sink is a buffering telemetry sender. It accepts mapped telemetry
// items, drops duplicates, queues their envelopes in memory and optionally in
// a BoltDB spool, and transmits them in batches.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/robfig/cron/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deepaksharma/spancore/core/config"
	"github.com/deepaksharma/spancore/core/telemetry"
	"github.com/deepaksharma/spancore/internal/metrics"
)

// ErrSinkClosed is returned by Flush after Shutdown.
var ErrSinkClosed = errors.New("sink is shut down")

type entry struct {
	hash     uint64
	queuedAt time.Time
	spoolKey []byte
	payload  []byte
}

// Sink implements the span host's Sender.
type Sink struct {
	config      config.SinkConfig
	iKey        string
	transmitter Transmitter

	lock  sync.Mutex
	queue *queue.Queue

	dedupe *dedupeSet
	spool  *Spool

	// flushLock serialises flushes. Batches within one flush are transmitted
	// concurrently and may arrive in any order.
	flushLock sync.Mutex

	purgeCron   *cron.Cron
	flushSignal chan struct{}
	stopChan    chan struct{}
	wg          sync.WaitGroup

	started *atomic.Bool
	stopped *atomic.Bool
	closed  *atomic.Bool

	metrics *metrics.Manager
	logger  *zap.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sink) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the manager whose sink counters are updated.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Sink) {
		if m != nil {
			s.metrics = m
		}
	}
}

// New creates a sink. The spool database is opened here when configured;
// background flushing begins with Start.
func New(cfg config.SinkConfig, iKey string, transmitter Transmitter, opts ...Option) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if transmitter == nil {
		return nil, errors.New("sink requires a transmitter")
	}

	s := &Sink{
		config:      cfg,
		iKey:        iKey,
		transmitter: transmitter,
		queue:       queue.New(),
		flushSignal: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		started:     atomic.NewBool(false),
		stopped:     atomic.NewBool(false),
		closed:      atomic.NewBool(false),
		metrics:     metrics.NewManager(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dedupe = newDedupeSet(cfg.DedupeWindowDuration(), s.logger)

	if cfg.SpoolPath != "" {
		spool, err := OpenSpool(cfg.SpoolPath, cfg.SpoolMaxAgeDuration(), s.logger.Named("spool"))
		if err != nil {
			return nil, err
		}
		s.spool = spool
		s.logger.Info("Spool storage initialized",
			zap.String("path", cfg.SpoolPath),
			zap.Duration("max_age", cfg.SpoolMaxAgeDuration()))
	}

	return s, nil
}

// Start reloads spooled envelopes and begins periodic flushing.
func (s *Sink) Start(_ context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}

	if s.spool != nil {
		if err := s.restoreSpool(); err != nil {
			return err
		}
		if s.config.SpoolPurgeSchedule != "" {
			s.purgeCron = cron.New()
			_, err := s.purgeCron.AddFunc(s.config.SpoolPurgeSchedule, s.purgeSpool)
			if err != nil {
				return fmt.Errorf("failed to schedule spool purge: %w", err)
			}
			s.purgeCron.Start()
			s.logger.Info("Scheduled spool purge",
				zap.String("schedule", s.config.SpoolPurgeSchedule))
		}
	}

	s.wg.Add(1)
	go s.flushLoop()

	s.logger.Info("Sink started",
		zap.Int("max_queue_size", s.config.MaxQueueSize),
		zap.Int("max_batch_size", s.config.MaxBatchSize),
		zap.Duration("flush_interval", s.config.FlushIntervalDuration()))
	return nil
}

func (s *Sink) restoreSpool() error {
	entries, err := s.spool.Load()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	s.lock.Lock()
	for _, e := range entries {
		s.dedupe.seenOrAdd(e.hash)
		s.enqueueLocked(&entry{
			hash:     e.hash,
			queuedAt: e.queuedAt,
			spoolKey: e.key,
			payload:  e.payload,
		})
	}
	s.lock.Unlock()

	s.logger.Info("Restored spooled envelopes", zap.Int("count", len(entries)))
	return nil
}

func (s *Sink) purgeSpool() {
	if _, err := s.spool.Purge(time.Now()); err != nil {
		s.logger.Error("Spool purge failed", zap.Error(err))
	}
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.FlushIntervalDuration())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-s.flushSignal:
		case <-s.stopChan:
			return
		}
		if err := s.Flush(context.Background()); err != nil {
			s.logger.Error("Failed to flush telemetry", zap.Error(err))
		}
	}
}

// Send accepts an item. Items already seen in the dedupe window are
// dropped, and a full queue drops its oldest entry to make room.
func (s *Sink) Send(item *telemetry.Item) {
	if item == nil {
		return
	}
	if s.stopped.Load() {
		s.metrics.ItemsDropped().Inc()
		s.logger.Debug("Sink is shut down, dropping item", zap.String("id", item.ID()))
		return
	}

	hash := itemKey(item)
	if s.dedupe.seenOrAdd(hash) {
		s.metrics.ItemsDeduplicated().Inc()
		s.logger.Debug("Dropping duplicate item", zap.String("id", item.ID()))
		return
	}

	payload, err := item.MarshalEnvelope(s.iKey, s.logger)
	if err != nil {
		s.metrics.ItemsDropped().Inc()
		s.logger.Error("Failed to serialize telemetry item",
			zap.String("id", item.ID()),
			zap.Error(err))
		return
	}

	e := &entry{hash: hash, queuedAt: time.Now(), payload: payload}
	if s.spool != nil {
		key, err := s.spool.Put(e.queuedAt, hash, payload)
		if err != nil {
			s.logger.Warn("Failed to spool item, keeping it in memory only", zap.Error(err))
		} else {
			e.spoolKey = key
			s.metrics.ItemsSpooled().Inc()
		}
	}

	s.lock.Lock()
	s.enqueueLocked(e)
	full := s.queue.Length() >= s.config.MaxBatchSize
	s.lock.Unlock()

	s.metrics.ItemsQueued().Inc()
	if full {
		select {
		case s.flushSignal <- struct{}{}:
		default:
		}
	}
}

// enqueueLocked must be called with the lock held.
func (s *Sink) enqueueLocked(e *entry) {
	for s.queue.Length() >= s.config.MaxQueueSize {
		oldest := s.queue.Remove().(*entry)
		s.metrics.ItemsDropped().Inc()
		if s.spool != nil && oldest.spoolKey != nil {
			if err := s.spool.Delete(oldest.spoolKey); err != nil {
				s.logger.Warn("Failed to remove evicted item from spool", zap.Error(err))
			}
		}
	}
	s.queue.Add(e)
	s.metrics.QueueSize().Store(int64(s.queue.Length()))
}

// Len returns the number of queued items.
func (s *Sink) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.queue.Length()
}

func (s *Sink) drain() []*entry {
	s.lock.Lock()
	defer s.lock.Unlock()

	entries := make([]*entry, 0, s.queue.Length())
	for s.queue.Length() > 0 {
		entries = append(entries, s.queue.Remove().(*entry))
	}
	s.metrics.QueueSize().Store(0)
	return entries
}

// requeue puts entries of a failed batch back for the next flush.
func (s *Sink) requeue(entries []*entry) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, e := range entries {
		s.enqueueLocked(e)
	}
}

// Flush transmits every queued item in batches of at most max_batch_size,
// with at most max_concurrent_transmits batches in flight. Batches that fail
// are queued again and the first failure is returned.
func (s *Sink) Flush(ctx context.Context) error {
	s.flushLock.Lock()
	defer s.flushLock.Unlock()

	if s.closed.Load() {
		return ErrSinkClosed
	}

	entries := s.drain()
	if len(entries) == 0 {
		return nil
	}

	var batches [][]*entry
	for start := 0; start < len(entries); start += s.config.MaxBatchSize {
		end := min(start+s.config.MaxBatchSize, len(entries))
		batches = append(batches, entries[start:end])
	}

	failed := make([][]*entry, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrentTransmits)
	for i, batch := range batches {
		g.Go(func() error {
			if err := s.transmit(gctx, batch); err != nil {
				failed[i] = batch
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	for _, batch := range failed {
		if batch != nil {
			s.requeue(batch)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to flush telemetry: %w", err)
	}
	return nil
}

func (s *Sink) transmit(ctx context.Context, batch []*entry) error {
	payloads := make([][]byte, len(batch))
	for i, e := range batch {
		payloads[i] = e.payload
	}

	if err := s.transmitter.Transmit(ctx, payloads); err != nil {
		s.metrics.TransmitFailures().Inc()
		return err
	}
	s.metrics.ItemsFlushed().Add(int64(len(batch)))

	if s.spool != nil {
		keys := make([][]byte, 0, len(batch))
		for _, e := range batch {
			keys = append(keys, e.spoolKey)
		}
		if err := s.spool.Delete(keys...); err != nil {
			s.logger.Warn("Failed to remove transmitted items from spool", zap.Error(err))
		}
	}
	return nil
}

// Shutdown stops background work, flushes the queue and closes the spool.
// Items that cannot be transmitted stay in the spool for the next Start.
func (s *Sink) Shutdown(ctx context.Context) error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	close(s.stopChan)
	s.wg.Wait()

	if s.purgeCron != nil {
		<-s.purgeCron.Stop().Done()
	}

	var errs []error
	if err := s.Flush(ctx); err != nil {
		errs = append(errs, err)
	}

	s.flushLock.Lock()
	s.closed.Store(true)
	if s.spool != nil {
		if err := s.spool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close spool: %w", err))
		}
	}
	s.flushLock.Unlock()

	s.logger.Info("Sink shut down",
		zap.Int64("flushed", s.metrics.ItemsFlushed().Load()),
		zap.Int("pending", s.Len()))
	return errors.Join(errs...)
}
