package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryLedger is an in-process Ledger for tests and local runs.
// Its state is lost with the process.
type MemoryLedger struct {
	now func() time.Time

	mu      sync.Mutex
	records map[string]Record
	seq     int64
}

// MemoryOption configures a MemoryLedger.
type MemoryOption func(*MemoryLedger)

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLedger) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(opts ...MemoryOption) *MemoryLedger {
	m := &MemoryLedger{
		now:     time.Now,
		records: make(map[string]Record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Submit executes CreateRecord or UpdateStatus.
func (m *MemoryLedger) Submit(ctx context.Context, function string, args ...string) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()

	var rec Record
	switch function {
	case FnCreateRecord:
		id, err := CreateArgs(args)
		if err != nil {
			return Receipt{}, err
		}
		if _, exists := m.records[id]; exists {
			return Receipt{}, fmt.Errorf("%w: %s", ErrRecordExists, id)
		}
		rec = NewRecord(id, now)

	case FnUpdateStatus:
		id, from, to, err := UpdateArgs(args)
		if err != nil {
			return Receipt{}, err
		}
		current, ok := m.records[id]
		if !ok {
			return Receipt{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		rec, err = ApplyTransition(current, from, to, now)
		if err != nil {
			return Receipt{}, err
		}

	default:
		return Receipt{}, UnknownFunction(function)
	}

	m.records[rec.ID] = rec
	m.seq++
	return Receipt{
		TxID:        fmt.Sprintf("mem-%06d", m.seq),
		Function:    function,
		RecordID:    rec.ID,
		Version:     rec.Version,
		CommittedAt: now,
	}, nil
}

// Evaluate executes GetRecord.
func (m *MemoryLedger) Evaluate(ctx context.Context, function string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if function != FnGetRecord {
		return nil, UnknownFunction(function)
	}
	id, err := GetArgs(args)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	rec, ok := m.records[id]
	m.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return json.Marshal(rec)
}

// Records returns a snapshot of every record, sorted by ID.
func (m *MemoryLedger) Records() []Record {
	m.mu.Lock()
	out := make([]Record, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	m.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Ping reports whether the ledger can serve calls.
func (m *MemoryLedger) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ Ledger = (*MemoryLedger)(nil)
