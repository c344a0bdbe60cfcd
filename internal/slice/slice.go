// Package slice implements the asynchronous resource cache used for every
// remote resource of the dashboard: one status machine per resource kind,
// keyed by a fetch parameter, holding the last payload and the last error.
package slice

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Status is the fetch state of a slice.
type Status int

const (
	Idle Status = iota
	Loading
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// State is a consistent snapshot of a slice.
//
// Loading always has an empty Error. A failed fetch leaves Data and DataKey
// as they were after the last success.
type State[P comparable, T any] struct {
	Data    T
	Status  Status
	Error   string
	Key     P    // parameter of the most recent fetch
	DataKey P    // parameter Data was fetched for
	HasData bool // at least one fetch succeeded
}

// Fresh reports whether Data holds a successful result for p.
func (s State[P, T]) Fresh(p P) bool {
	return s.HasData && s.DataKey == p
}

// Loader performs the remote read.
type Loader[P comparable, T any] func(ctx context.Context, p P) (T, error)

// Observer is told the outcome of each fetch attempt: "succeeded", "failed",
// "suppressed" or "dropped".
type Observer interface {
	ObserveFetch(resource, outcome string)
}

type options struct {
	describe func(error) string
	obs      Observer
	log      zerolog.Logger
}

// Option configures a Slice.
type Option func(*options)

// WithDescriber sets how failures become user-facing messages.
func WithDescriber(fn func(error) string) Option {
	return func(o *options) {
		if fn != nil {
			o.describe = fn
		}
	}
}

// WithObserver reports fetch outcomes.
func WithObserver(obs Observer) Option { return func(o *options) { o.obs = obs } }

// WithLogger logs failed fetches at debug level.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// Slice caches one resource kind. All methods are safe for concurrent use.
type Slice[P comparable, T any] struct {
	name string
	load Loader[P, T]
	opts options

	life context.Context
	kill context.CancelFunc

	mu     sync.Mutex
	state  State[P, T]
	done   chan struct{} // non-nil while a fetch is in flight
	cancel context.CancelFunc
	gen    uint64
	closed bool
}

// New returns an Idle slice named name (used in metrics and logs).
func New[P comparable, T any](name string, load Loader[P, T], opts ...Option) *Slice[P, T] {
	o := options{
		describe: func(err error) string { return err.Error() },
		log:      zerolog.Nop(),
	}
	for _, fn := range opts {
		fn(&o)
	}
	life, kill := context.WithCancel(context.Background())
	return &Slice[P, T]{name: name, load: load, opts: o, life: life, kill: kill}
}

// Name returns the resource name.
func (s *Slice[P, T]) Name() string { return s.name }

// Snapshot returns the current state.
func (s *Slice[P, T]) Snapshot() State[P, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fetch starts a remote read for p and reports whether it did. While a
// fetch is in flight the call is dropped: no remote call and no state
// change. The read runs in the background; use Wait to block on it.
func (s *Slice[P, T]) Fetch(ctx context.Context, p P) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchLocked(ctx, p)
}

// Ensure fetches p only when it is set, no fetch is in flight, and the slice
// does not already hold a successful result for p.
func (s *Slice[P, T]) Ensure(ctx context.Context, p P) bool {
	var zero P
	if p == zero {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status == Loading || s.state.Fresh(p) {
		return false
	}
	return s.fetchLocked(ctx, p)
}

// Refresh waits for any in-flight fetch, then fetches p again and waits for
// the result. It is the reconciliation step after a remote write.
func (s *Slice[P, T]) Refresh(ctx context.Context, p P) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}
	s.Fetch(ctx, p)
	return s.Wait(ctx)
}

// Wait blocks until no fetch is in flight or ctx is done.
func (s *Slice[P, T]) Wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.done
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	select {
	case <-d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset cancels any in-flight fetch and returns the slice to Idle with no
// data. Results of the cancelled fetch are discarded.
func (s *Slice[P, T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortLocked()
	s.state = State[P, T]{}
}

// Close cancels in-flight requests. A closed slice ignores later fetches
// and late results.
func (s *Slice[P, T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.abortLocked()
	s.kill()
}

func (s *Slice[P, T]) abortLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state.Status == Loading {
		s.state.Status = Idle
	}
	s.done = nil
}

func (s *Slice[P, T]) fetchLocked(ctx context.Context, p P) bool {
	if s.closed {
		return false
	}
	if s.state.Status == Loading {
		s.observe("suppressed")
		return false
	}

	// The read outlives the request that started it but not the slice.
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(s.life, cancel)

	done := make(chan struct{})
	s.gen++
	gen := s.gen
	s.done = done
	s.cancel = cancel
	s.state.Status = Loading
	s.state.Error = ""
	s.state.Key = p

	go func() {
		defer close(done)
		data, err := s.load(fctx, p)
		stop()
		cancel()
		s.finish(gen, p, data, err)
	}()
	return true
}

func (s *Slice[P, T]) finish(gen uint64, p P, data T, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.closed {
		s.observe("dropped")
		return
	}
	s.done = nil
	s.cancel = nil
	if err != nil {
		s.state.Status = Failed
		s.state.Error = s.opts.describe(err)
		s.opts.log.Debug().Err(err).Str("resource", s.name).Msg("fetch failed")
		s.observe("failed")
		return
	}
	s.state.Status = Succeeded
	s.state.Data = data
	s.state.DataKey = p
	s.state.HasData = true
	s.observe("succeeded")
}

func (s *Slice[P, T]) observe(outcome string) {
	if s.opts.obs != nil {
		s.opts.obs.ObserveFetch(s.name, outcome)
	}
}
