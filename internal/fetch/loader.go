// Package fetch coordinates concurrent reads of the same entity so that only the
// newest request for a key can publish its result.
package fetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-lms-gateway/internal/observability"
)

// ErrSuperseded is returned to a caller whose request was overtaken by a newer one
// for the same key.
var ErrSuperseded = errors.New("request superseded by a newer load")

// Func performs the actual read.
type Func[T any] func(ctx context.Context) (T, error)

// Snapshot is the observable state of one key.
type Snapshot[T any] struct {
	Data      T
	HasData   bool
	Loading   bool
	Err       error
	Seq       uint64
	UpdatedAt time.Time
}

type entry[T any] struct {
	snapshot Snapshot[T]
	inflight uint64
	cancel   context.CancelFunc
}

// Loader tracks one resource type. Each Load for a key cancels the prior in-flight
// load for that key and tags itself with a monotonically increasing sequence number.
type Loader[T any] struct {
	resource string
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	seq     uint64
	entries map[string]*entry[T]
}

// NewLoader builds a loader. resource labels metrics and logs.
func NewLoader[T any](resource string, logger zerolog.Logger) *Loader[T] {
	return &Loader[T]{
		resource: resource,
		logger:   logger.With().Str("component", "loader").Str("resource", resource).Logger(),
		now:      time.Now,
		entries:  make(map[string]*entry[T]),
	}
}

// Load runs fn for key. A failure keeps the previously loaded data and records the
// error. A result that arrives after a newer Load started is discarded and the caller
// receives ErrSuperseded together with the current snapshot.
func (l *Loader[T]) Load(ctx context.Context, key string, fn Func[T]) (Snapshot[T], error) {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	current := l.entry(key)
	if current.cancel != nil {
		current.cancel()
	}
	loadCtx, cancel := context.WithCancel(ctx)
	current.inflight = seq
	current.cancel = cancel
	current.snapshot.Loading = true
	l.mu.Unlock()

	defer cancel()
	data, err := fn(loadCtx)

	l.mu.Lock()
	defer l.mu.Unlock()

	current = l.entry(key)
	if current.inflight != seq {
		observability.StaleResults().WithLabelValues(l.resource).Inc()
		l.logger.Debug().Str("key", key).Uint64("seq", seq).Uint64("latest", current.inflight).Msg("discarding superseded result")
		return current.snapshot, ErrSuperseded
	}

	current.cancel = nil
	current.snapshot.Loading = false
	current.snapshot.Seq = seq
	if err != nil {
		current.snapshot.Err = err
		return current.snapshot, err
	}

	current.snapshot.Data = data
	current.snapshot.HasData = true
	current.snapshot.Err = nil
	current.snapshot.UpdatedAt = l.now().UTC()
	return current.snapshot, nil
}

// Get returns the current snapshot for key.
func (l *Loader[T]) Get(key string) Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.entries[key]; ok {
		return current.snapshot
	}
	return Snapshot[T]{}
}

// Set publishes data for key directly, superseding any in-flight load. It is used
// when a mutation already returned the authoritative entity.
func (l *Loader[T]) Set(key string, data T) Snapshot[T] {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	current := l.entry(key)
	if current.cancel != nil {
		current.cancel()
		current.cancel = nil
	}
	current.inflight = l.seq
	current.snapshot = Snapshot[T]{
		Data:      data,
		HasData:   true,
		Seq:       l.seq,
		UpdatedAt: l.now().UTC(),
	}
	return current.snapshot
}

// Invalidate cancels any in-flight load and forgets the key.
func (l *Loader[T]) Invalidate(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current, ok := l.entries[key]; ok {
		if current.cancel != nil {
			current.cancel()
		}
		delete(l.entries, key)
	}
}

// entry must be called with mu held.
func (l *Loader[T]) entry(key string) *entry[T] {
	current, ok := l.entries[key]
	if !ok {
		current = &entry[T]{}
		l.entries[key] = current
	}
	return current
}
