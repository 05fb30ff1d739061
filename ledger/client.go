package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/ledgerops/cache"
	"github.com/jonwraymond/ledgerops/observe"
	"github.com/jonwraymond/ledgerops/resilience"
	"github.com/jonwraymond/ledgerops/workflow"
)

// TransitionRequest asks to move a record from one status to another.
type TransitionRequest struct {
	RecordID string
	From     workflow.State
	To       workflow.State

	// Org is the requesting organization. Required when the client has
	// an Authority.
	Org workflow.Org
}

// RecordView is a record together with its position in the workflow.
type RecordView struct {
	Record
	Stage    workflow.Stage   `json:"stage"`
	Progress int              `json:"progress"`
	Terminal bool             `json:"terminal"`
	Next     []workflow.State `json:"next"`
}

// Client moves records through the workflow on a Ledger. Every call runs
// through a resilience.Facade.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: illegal or unauthorized transitions fail with a
//     *workflow.ValidationError before the ledger is called; ledger
//     failures arrive as returned by the facade.
type Client struct {
	ledger    Ledger
	facade    *resilience.Facade
	graph     *workflow.Graph
	authority workflow.Authority
	reads     *cache.ReadThrough
	logger    observe.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithGraph replaces workflow.DefaultGraph.
func WithGraph(g *workflow.Graph) ClientOption {
	return func(c *Client) {
		if g != nil {
			c.graph = g
		}
	}
}

// WithAuthority requires every transition to be authorized for the
// requesting organization.
func WithAuthority(a workflow.Authority) ClientOption {
	return func(c *Client) {
		c.authority = a
	}
}

// WithReadCache serves GetRecord through rt.
func WithReadCache(rt *cache.ReadThrough) ClientOption {
	return func(c *Client) {
		c.reads = rt
	}
}

// WithClientLogger logs committed and rejected transitions to l.
func WithClientLogger(l observe.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for l guarded by f.
func NewClient(l Ledger, f *resilience.Facade, opts ...ClientOption) (*Client, error) {
	if l == nil {
		return nil, ErrNilLedger
	}
	if f == nil {
		return nil, ErrNilFacade
	}
	c := &Client{
		ledger: l,
		facade: f,
		graph:  workflow.DefaultGraph(),
		logger: observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Graph returns the client's status graph.
func (c *Client) Graph() *workflow.Graph {
	return c.graph
}

// Create submits CreateRecord for id.
func (c *Client) Create(ctx context.Context, id string) (Receipt, error) {
	if id == "" {
		return Receipt{}, fmt.Errorf("%w: record id is required", ErrInvalidArgs)
	}
	return resilience.Transaction(ctx, c.facade, FnCreateRecord, func(ctx context.Context) (Receipt, error) {
		return c.ledger.Submit(ctx, FnCreateRecord, id)
	})
}

// Transition validates req against the graph (and authority, if set) and
// submits UpdateStatus with canonical statuses. Cached reads of the record
// are dropped whether or not the submit succeeded, since a failed call may
// still have been committed.
func (c *Client) Transition(ctx context.Context, req TransitionRequest) (Receipt, error) {
	if req.RecordID == "" {
		return Receipt{}, fmt.Errorf("%w: record id is required", ErrInvalidArgs)
	}

	from, to := c.graph.Canonical(req.From), c.graph.Canonical(req.To)
	log := c.logger.WithCall(observe.CallMeta{
		Dependency: c.facade.Dependency(),
		Kind:       resilience.KindTransaction,
		Label:      FnUpdateStatus,
		Org:        string(req.Org),
	})
	fields := []observe.Field{
		{Key: "record", Value: req.RecordID},
		{Key: "from", Value: string(from)},
		{Key: "to", Value: string(to)},
	}

	var err error
	if c.authority != nil {
		err = c.graph.Authorize(c.authority, req.Org, from, to)
	} else {
		err = c.graph.Validate(from, to)
	}
	if err != nil {
		log.Warn(ctx, "status transition rejected", append(fields, observe.Field{Key: "error", Value: err.Error()})...)
		return Receipt{}, err
	}

	receipt, err := resilience.Transaction(ctx, c.facade, FnUpdateStatus, func(ctx context.Context) (Receipt, error) {
		return c.ledger.Submit(ctx, FnUpdateStatus, req.RecordID, string(from), string(to))
	})
	c.invalidate(ctx, req.RecordID)
	if err != nil {
		return Receipt{}, err
	}

	log.Info(ctx, "status transition committed", append(fields,
		observe.Field{Key: "tx_id", Value: receipt.TxID},
		observe.Field{Key: "version", Value: receipt.Version},
	)...)
	return receipt, nil
}

// Record reads a record through the cache, if any.
func (c *Client) Record(ctx context.Context, id string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("%w: record id is required", ErrInvalidArgs)
	}

	load := func(ctx context.Context) ([]byte, error) {
		return resilience.Query(ctx, c.facade, FnGetRecord, func(ctx context.Context) ([]byte, error) {
			return c.ledger.Evaluate(ctx, FnGetRecord, id)
		})
	}

	var (
		data []byte
		err  error
	)
	if c.reads != nil {
		data, err = c.reads.Get(ctx, FnGetRecord, []string{id}, load)
	} else {
		data, err = load(ctx)
	}
	if err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("ledger: decode record %s: %w", id, err)
	}
	return rec, nil
}

// View reads a record and places it in the workflow.
func (c *Client) View(ctx context.Context, id string) (RecordView, error) {
	rec, err := c.Record(ctx, id)
	if err != nil {
		return RecordView{}, err
	}
	return RecordView{
		Record:   rec,
		Stage:    c.graph.StageOf(rec.Status),
		Progress: c.graph.ProgressOf(rec.Status),
		Terminal: c.graph.IsTerminal(rec.Status),
		Next:     c.graph.NextStates(rec.Status),
	}, nil
}

func (c *Client) invalidate(ctx context.Context, id string) {
	if c.reads == nil {
		return
	}
	if err := c.reads.Invalidate(ctx, FnGetRecord, []string{id}); err != nil {
		c.logger.Warn(ctx, "cache invalidation failed",
			observe.Field{Key: "record", Value: id},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}
