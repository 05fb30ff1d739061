package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/jonwraymond/ledgerops/fault"
	"github.com/jonwraymond/ledgerops/ledger"
	"github.com/jonwraymond/ledgerops/workflow"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

//go:embed schema.sql
var schema string

// ErrEmptyPath is returned by Open without a database path.
var ErrEmptyPath = fault.New(fault.KindValidation, "sqlite: database path is required")

// Ledger persists records in SQLite.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path, or a private in-memory database for
// MemoryDSN, and creates the schema.
func Open(path string, opts ...Option) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrEmptyPath
	}

	dsn := path
	if path != MemoryDSN {
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == MemoryDSN {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	l := &Ledger{db: db, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database handle.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Ping reports whether the database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return classify(l.db.PingContext(ctx))
}

// Submit executes CreateRecord or UpdateStatus in one transaction.
func (l *Ledger) Submit(ctx context.Context, function string, args ...string) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}

	var write func(ctx context.Context, tx *sql.Tx, now time.Time) (ledger.Record, error)
	switch function {
	case ledger.FnCreateRecord:
		id, err := ledger.CreateArgs(args)
		if err != nil {
			return ledger.Receipt{}, err
		}
		write = func(ctx context.Context, tx *sql.Tx, now time.Time) (ledger.Record, error) {
			return createRecord(ctx, tx, id, now)
		}
	case ledger.FnUpdateStatus:
		id, from, to, err := ledger.UpdateArgs(args)
		if err != nil {
			return ledger.Receipt{}, err
		}
		write = func(ctx context.Context, tx *sql.Tx, now time.Time) (ledger.Record, error) {
			return updateStatus(ctx, tx, id, from, to, now)
		}
	default:
		return ledger.Receipt{}, ledger.UnknownFunction(function)
	}

	// Stored at millisecond precision; round now so receipts match reads.
	now := fromMillis(toMillis(l.now()))

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Receipt{}, classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	rec, err := write(ctx, tx, now)
	if err != nil {
		return ledger.Receipt{}, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO submissions (function, record_id, version, committed_at) VALUES (?, ?, ?, ?)`,
		function, rec.ID, rec.Version, toMillis(now),
	)
	if err != nil {
		return ledger.Receipt{}, classify(fmt.Errorf("log submission: %w", err))
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return ledger.Receipt{}, classify(fmt.Errorf("log submission: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return ledger.Receipt{}, classify(fmt.Errorf("commit: %w", err))
	}

	return ledger.Receipt{
		TxID:        txID(seq),
		Function:    function,
		RecordID:    rec.ID,
		Version:     rec.Version,
		CommittedAt: now,
	}, nil
}

func createRecord(ctx context.Context, tx *sql.Tx, id string, now time.Time) (ledger.Record, error) {
	rec := ledger.NewRecord(id, now)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO records (id, status, version, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Status), rec.Version, toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.Record{}, fmt.Errorf("%w: %s", ledger.ErrRecordExists, id)
		}
		return ledger.Record{}, classify(fmt.Errorf("create record: %w", err))
	}
	return rec, nil
}

func updateStatus(ctx context.Context, tx *sql.Tx, id string, from, to workflow.State, now time.Time) (ledger.Record, error) {
	current, err := getRecord(ctx, tx, id)
	if err != nil {
		return ledger.Record{}, err
	}
	next, err := ledger.ApplyTransition(current, from, to, now)
	if err != nil {
		return ledger.Record{}, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE records SET status = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?`,
		string(next.Status), next.Version, toMillis(next.UpdatedAt), id, current.Version,
	)
	if err != nil {
		return ledger.Record{}, classify(fmt.Errorf("update record: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ledger.Record{}, classify(fmt.Errorf("update record: %w", err))
	}
	if n == 0 {
		return ledger.Record{}, &ledger.ConflictError{RecordID: id, Expected: from, Actual: current.Status}
	}
	return next, nil
}

// Evaluate executes GetRecord and returns the record as JSON.
func (l *Ledger) Evaluate(ctx context.Context, function string, args ...string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if function != ledger.FnGetRecord {
		return nil, ledger.UnknownFunction(function)
	}
	id, err := ledger.GetArgs(args)
	if err != nil {
		return nil, err
	}

	rec, err := getRecord(ctx, l.db, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rec)
}

// History returns the committed submissions for a record, oldest first.
func (l *Ledger) History(ctx context.Context, id string) ([]ledger.Receipt, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT tx_id, function, version, committed_at FROM submissions WHERE record_id = ? ORDER BY tx_id`,
		id,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("query history: %w", err))
	}
	defer rows.Close()

	var out []ledger.Receipt
	for rows.Next() {
		var (
			seq         int64
			committedAt int64
			receipt     = ledger.Receipt{RecordID: id}
		)
		if err := rows.Scan(&seq, &receipt.Function, &receipt.Version, &committedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		receipt.TxID = txID(seq)
		receipt.CommittedAt = fromMillis(committedAt)
		out = append(out, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Errorf("iterate history: %w", err))
	}
	return out, nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q queryer, id string) (ledger.Record, error) {
	var (
		rec       = ledger.Record{ID: id}
		status    string
		createdAt int64
		updatedAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT status, version, created_at, updated_at FROM records WHERE id = ?`,
		id,
	).Scan(&status, &rec.Version, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Record{}, fmt.Errorf("%w: %s", ledger.ErrRecordNotFound, id)
	}
	if err != nil {
		return ledger.Record{}, classify(fmt.Errorf("get record: %w", err))
	}
	rec.Status = workflow.State(status)
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}

func txID(seq int64) string {
	return fmt.Sprintf("sql-%06d", seq)
}

// classify tags busy and locked errors as transient.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fault.Transient(err)
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ ledger.Ledger = (*Ledger)(nil)
