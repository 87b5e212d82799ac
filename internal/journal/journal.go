// Package journal persists admission events to DuckDB for offline analysis.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"polibase/pkg/ratelimiter"
)

//go:embed schema.sql
var schemaDDL string

const (
	KindAdmit  = "admit"
	KindWait   = "wait"
	KindCancel = "cancel"

	defaultBuffer = 1024
	maxBatch      = 256
)

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal: closed")

// Entry is one admission event.
type Entry struct {
	At         time.Time
	Endpoint   string
	Kind       string
	Wait       time.Duration
	TierWindow time.Duration
}

// item is either an entry or a flush barrier.
type item struct {
	entry   Entry
	flushed chan error
}

// Journal is a ratelimiter.Observer that appends events to DuckDB from a
// single writer goroutine. Events that arrive while the buffer is full are
// dropped and counted rather than blocking the gate.
type Journal struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	items  chan item
	done   chan struct{}

	dropped atomic.Int64
	err     error
}

var _ ratelimiter.Observer = (*Journal)(nil)

// Open opens (or creates) the journal database at dsn. An empty dsn opens an
// in-memory database.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Journal, error) {
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// One connection keeps in-memory databases shared between writer and readers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Journal{
		db:     db,
		logger: logger,
		now:    time.Now,
		items:  make(chan item, defaultBuffer),
		done:   make(chan struct{}),
	}
	go j.write()
	return j, nil
}

// SetClock makes wait and cancel events use now for their timestamps.
// Call it before the journal is attached to a gate.
func (j *Journal) SetClock(now func() time.Time) {
	if now != nil {
		j.now = now
	}
}

// OnAdmit journals an admission.
func (j *Journal) OnAdmit(rec ratelimiter.RequestRecord) {
	j.enqueue(Entry{At: rec.Timestamp, Endpoint: rec.Endpoint, Kind: KindAdmit})
}

// OnWait journals a delayed attempt with its binding tier.
func (j *Journal) OnWait(endpoint string, d ratelimiter.Decision) {
	j.enqueue(Entry{At: j.now(), Endpoint: endpoint, Kind: KindWait, Wait: d.Wait, TierWindow: d.Binding.Window})
}

// OnCancel journals an abandoned admission.
func (j *Journal) OnCancel(endpoint string, _ error) {
	j.enqueue(Entry{At: j.now(), Endpoint: endpoint, Kind: KindCancel})
}

// Dropped reports how many events were discarded because the buffer was full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

func (j *Journal) enqueue(e Entry) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return
	}
	select {
	case j.items <- item{entry: e}:
	default:
		j.dropped.Add(1)
	}
}

// Flush blocks until every event enqueued before the call is written.
func (j *Journal) Flush(ctx context.Context) error {
	flushed := make(chan error, 1)
	j.mu.RLock()
	if j.closed {
		j.mu.RUnlock()
		return ErrClosed
	}
	select {
	case j.items <- item{flushed: flushed}:
		j.mu.RUnlock()
	case <-ctx.Done():
		j.mu.RUnlock()
		return ctx.Err()
	}
	select {
	case err := <-flushed:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes pending events and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return ErrClosed
	}
	j.closed = true
	close(j.items)
	j.mu.Unlock()

	<-j.done
	if dropped := j.Dropped(); dropped > 0 {
		j.logger.Warn("journal dropped events", zap.Int64("dropped", dropped))
	}
	return errors.Join(j.err, j.db.Close())
}

// write drains the queue in batches until it is closed.
func (j *Journal) write() {
	defer close(j.done)
	batch := make([]Entry, 0, maxBatch)
	for it := range j.items {
		batch = batch[:0]
		var barriers []chan error
		collect := func(it item) {
			if it.flushed != nil {
				barriers = append(barriers, it.flushed)
				return
			}
			batch = append(batch, it.entry)
		}
		collect(it)
	fill:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-j.items:
				if !ok {
					break fill
				}
				collect(next)
			default:
				break fill
			}
		}

		err := j.insert(batch)
		if err != nil {
			j.logger.Error("journal write failed", zap.Int("events", len(batch)), zap.Error(err))
			j.err = errors.Join(j.err, err)
		}
		for _, barrier := range barriers {
			barrier <- err
		}
	}
}

func (j *Journal) insert(batch []Entry) error {
	if len(batch) == 0 {
		return nil
	}
	ctx := context.Background()
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO admissions (ts, endpoint, kind, wait_ms, tier_window_ms) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare journal insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range batch {
		if _, err := stmt.ExecContext(ctx, e.At.UTC(), e.Endpoint, e.Kind, e.Wait.Milliseconds(), e.TierWindow.Milliseconds()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert journal entry: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal batch: %w", err)
	}
	return nil
}
