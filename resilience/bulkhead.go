package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const defaultBulkheadCapacity = 10

// BulkheadConfig configures a Bulkhead.
type BulkheadConfig struct {
	// Name identifies the guarded resource in errors and stats.
	Name string

	// MaxConcurrent is the number of slots.
	// Default: 10
	MaxConcurrent int

	// MaxQueue caps callers waiting for a slot. Zero leaves the queue
	// unbounded; a negative value rejects instead of queueing.
	MaxQueue int

	// MaxWait caps how long a queued caller waits. Zero waits for as long
	// as the caller's context allows.
	MaxWait time.Duration
}

// Bulkhead caps concurrent calls into one resource. A caller that finds
// every slot taken joins a FIFO queue; the occupancy never exceeds
// MaxConcurrent.
type Bulkhead struct {
	config BulkheadConfig
	slots  *semaphore.Weighted

	mu    sync.Mutex
	stats BulkheadMetrics
}

// NewBulkhead creates a bulkhead with every slot free.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaultBulkheadCapacity
	}
	return &Bulkhead{
		config: config,
		slots:  semaphore.NewWeighted(int64(config.MaxConcurrent)),
		stats: BulkheadMetrics{
			Name:          config.Name,
			MaxConcurrent: config.MaxConcurrent,
		},
	}
}

// Name returns the bulkhead name.
func (b *Bulkhead) Name() string {
	return b.config.Name
}

// Acquire takes a slot, queueing behind earlier callers while none is
// free. It fails with ErrBulkheadFull when the queue is at MaxQueue or
// MaxWait runs out, and with ctx.Err() when the caller gives up.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	// TryAcquire fails while anyone is queued, which keeps admission FIFO.
	if b.slots.TryAcquire(1) {
		b.occupy()
		return nil
	}
	if !b.enqueue() {
		return b.full()
	}

	wait := ctx
	if b.config.MaxWait > 0 {
		var cancel context.CancelFunc
		wait, cancel = context.WithTimeout(ctx, b.config.MaxWait)
		defer cancel()
	}

	err := b.slots.Acquire(wait, 1)
	b.mu.Lock()
	b.stats.Queued--
	b.mu.Unlock()

	switch {
	case err == nil:
		b.occupy()
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		return b.reject()
	}
}

// enqueue reserves a queue position, reporting false when the queue is
// closed or full. A refused caller is counted as rejected.
func (b *Bulkhead) enqueue() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	limit := b.config.MaxQueue
	if limit < 0 || (limit > 0 && b.stats.Queued >= limit) {
		b.stats.Rejected++
		return false
	}
	b.stats.Queued++
	return true
}

func (b *Bulkhead) reject() error {
	b.mu.Lock()
	b.stats.Rejected++
	b.mu.Unlock()
	return b.full()
}

func (b *Bulkhead) full() error {
	if b.config.Name == "" {
		return ErrBulkheadFull
	}
	return fmt.Errorf("%w: %s", ErrBulkheadFull, b.config.Name)
}

func (b *Bulkhead) occupy() {
	b.mu.Lock()
	b.stats.Active++
	b.stats.MaxActive = max(b.stats.MaxActive, b.stats.Active)
	b.mu.Unlock()
}

// Release frees a slot. A Release without a matching Acquire is ignored.
func (b *Bulkhead) Release() {
	b.mu.Lock()
	if b.stats.Active == 0 {
		b.mu.Unlock()
		return
	}
	b.stats.Active--
	b.mu.Unlock()

	b.slots.Release(1)
}

// Execute runs op in a slot and frees the slot when op returns.
func (b *Bulkhead) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := b.Acquire(ctx); err != nil {
		return err
	}
	defer b.Release()
	return op(ctx)
}

// Metrics returns a snapshot of occupancy and queue length.
func (b *Bulkhead) Metrics() BulkheadMetrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	m := b.stats
	m.Available = m.MaxConcurrent - m.Active
	return m
}

// BulkheadMetrics is a point-in-time view of a Bulkhead.
type BulkheadMetrics struct {
	Name          string `json:"name"`
	Active        int    `json:"currentCount"`
	MaxActive     int    `json:"maxActive"`
	Available     int    `json:"available"`
	MaxConcurrent int    `json:"maxConcurrent"`
	Queued        int    `json:"queueLength"`
	Rejected      int64  `json:"rejected"`
}
