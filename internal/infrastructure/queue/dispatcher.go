// Package queue decouples adapter writes from the request path.
package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pixel-analytics/pixel/internal/api/metrics"
	"github.com/pixel-analytics/pixel/internal/core/domain"
	"github.com/pixel-analytics/pixel/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
	writeTimeout   = 10 * time.Second
)

type jobKind uint8

const (
	saveUser jobKind = iota
	saveEvent
)

type job struct {
	kind    jobKind
	subject domain.Subject
	record  domain.EventRecord
}

func (j job) key() string {
	if j.kind == saveEvent {
		return j.record.Subject.Key()
	}
	return j.subject.Key()
}

// AsyncAdapter wraps a StorageAdapter and performs its writes on a fixed set
// of workers. Jobs are sharded by subject key, so one subject's profile save
// and event insert reach the inner adapter in submission order.
type AsyncAdapter struct {
	inner   ports.StorageAdapter
	workers []chan job
	log     zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	wg      sync.WaitGroup
}

var _ ports.StorageAdapter = (*AsyncAdapter)(nil)

// NewAsyncAdapter creates an AsyncAdapter with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewAsyncAdapter(inner ports.StorageAdapter, numWorkers int, log zerolog.Logger) *AsyncAdapter {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	a := &AsyncAdapter{
		inner:   inner,
		workers: make([]chan job, numWorkers),
		log:     log,
	}
	for i := range a.workers {
		a.workers[i] = make(chan job, channelBuffer)
	}
	return a
}

func (a *AsyncAdapter) Name() string { return a.inner.Name() }

// Inner returns the wrapped adapter.
func (a *AsyncAdapter) Inner() ports.StorageAdapter { return a.inner }

// Start launches all worker goroutines. Workers drain their channel and exit
// once Stop is called.
func (a *AsyncAdapter) Start() {
	for i, ch := range a.workers {
		a.wg.Add(1)
		go a.runWorker(i, ch)
	}
}

// Stop rejects new jobs and waits for queued ones to finish or ctx to expire.
func (a *AsyncAdapter) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.stopped {
		a.stopped = true
		for _, ch := range a.workers {
			close(ch)
		}
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SaveUser queues the profile write. It never fails; errors surface in logs.
func (a *AsyncAdapter) SaveUser(_ context.Context, subject domain.Subject) error {
	a.enqueue(job{kind: saveUser, subject: subject})
	return nil
}

// SaveEvent queues the event write.
func (a *AsyncAdapter) SaveEvent(_ context.Context, record domain.EventRecord) error {
	a.enqueue(job{kind: saveEvent, record: record})
	return nil
}

// Ping forwards to the inner adapter when it supports health checks.
func (a *AsyncAdapter) Ping(ctx context.Context) error {
	if hc, ok := a.inner.(ports.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

func (a *AsyncAdapter) enqueue(j job) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		metrics.DispatchDroppedTotal.Inc()
		a.log.Warn().Str("adapter", a.inner.Name()).Str("subject", j.key()).Msg("dispatcher stopped, write dropped")
		return
	}
	idx := a.shardIndex(j.key())
	a.workers[idx] <- j
	metrics.DispatchQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(a.workers[idx])))
}

// shardIndex maps a subject key deterministically to a worker index.
func (a *AsyncAdapter) shardIndex(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(a.workers)))
}

func (a *AsyncAdapter) runWorker(id int, ch <-chan job) {
	defer a.wg.Done()
	label := strconv.Itoa(id)
	for j := range ch {
		metrics.DispatchQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
		a.process(id, j)
	}
}

func (a *AsyncAdapter) process(id int, j job) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	op := "save_event"
	if j.kind == saveUser {
		op = "save_user"
		err = a.inner.SaveUser(ctx, j.subject)
	} else {
		err = a.inner.SaveEvent(ctx, j.record)
	}
	if err != nil {
		metrics.AdapterErrorsTotal.WithLabelValues(a.inner.Name(), op).Inc()
		a.log.Error().Err(err).
			Str("adapter", a.inner.Name()).
			Str("op", op).
			Str("subject", j.key()).
			Int("worker_id", id).
			Msg("async adapter write failed")
	}
}
