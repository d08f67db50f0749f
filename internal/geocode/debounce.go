package geocode

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrSuperseded = errors.New("superseded by a newer request")

type pending struct {
	seq    uint64
	query  string
	cancel context.CancelFunc
}

// Debouncer collapses bursts of lookups per key. Each call cancels the previous
// pending or in-flight call for the same key and waits out the quiet period
// before it reaches the Lookuper.
type Debouncer struct {
	next  Lookuper
	quiet time.Duration

	mu   sync.Mutex
	seq  uint64
	keys map[string]*pending
}

func NewDebouncer(next Lookuper, quiet time.Duration) *Debouncer {
	if quiet < 0 {
		quiet = 0
	}
	return &Debouncer{
		next:  next,
		quiet: quiet,
		keys:  make(map[string]*pending),
	}
}

func (d *Debouncer) Do(ctx context.Context, key, query string) (*Place, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	d.seq++
	mine := &pending{seq: d.seq, query: NormalizeQuery(query), cancel: cancel}
	if prev, ok := d.keys[key]; ok {
		prev.cancel()
	}
	d.keys[key] = mine
	d.mu.Unlock()

	defer d.release(key, mine)

	timer := time.NewTimer(d.quiet)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, d.cancelled(ctx, key, mine)
	case <-timer.C:
	}

	place, err := d.next.Lookup(ctx, query)

	if !d.isLatest(key, mine) {
		return nil, ErrSuperseded
	}
	if err != nil && ctx.Err() != nil {
		return nil, d.cancelled(ctx, key, mine)
	}
	return place, err
}

// cancelled maps a context stop to ErrSuperseded when a newer call replaced this one.
func (d *Debouncer) cancelled(ctx context.Context, key string, mine *pending) error {
	if !d.isLatest(key, mine) {
		return ErrSuperseded
	}
	return ctx.Err()
}

func (d *Debouncer) isLatest(key string, mine *pending) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	cur, ok := d.keys[key]
	return ok && cur.seq == mine.seq && cur.query == mine.query
}

func (d *Debouncer) release(key string, mine *pending) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cur, ok := d.keys[key]; ok && cur.seq == mine.seq {
		delete(d.keys, key)
	}
}
