package slice

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// gatedLoader blocks every call until release is closed and counts calls.
type gatedLoader struct {
	calls   atomic.Int32
	release chan struct{}
	mu      sync.Mutex
	results map[string]result
}

type result struct {
	data []string
	err  error
}

func newGated() *gatedLoader {
	return &gatedLoader{release: make(chan struct{}), results: map[string]result{}}
}

func (g *gatedLoader) set(p string, data []string, err error) {
	g.mu.Lock()
	g.results[p] = result{data, err}
	g.mu.Unlock()
}

func (g *gatedLoader) load(ctx context.Context, p string) ([]string, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.results[p]
	return r.data, r.err
}

type countingObserver struct {
	mu  sync.Mutex
	got map[string]int
}

func (o *countingObserver) ObserveFetch(_ string, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.got == nil {
		o.got = map[string]int{}
	}
	o.got[outcome]++
}

func (o *countingObserver) count(outcome string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.got[outcome]
}

func waitOrFail(t *testing.T, s interface{ Wait(context.Context) error }) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestFetchSuccess(t *testing.T) {
	g := newGated()
	g.set("d1", []string{"a", "b"}, nil)
	close(g.release)
	s := New("patients", g.load)

	if st := s.Snapshot(); st.Status != Idle {
		t.Fatalf("initial status %v", st.Status)
	}
	if !s.Fetch(context.Background(), "d1") {
		t.Fatalf("fetch should start")
	}
	waitOrFail(t, s)
	st := s.Snapshot()
	if st.Status != Succeeded || len(st.Data) != 2 || st.Error != "" || !st.Fresh("d1") {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestFetchWhileLoadingIsSuppressed(t *testing.T) {
	g := newGated()
	g.set("d1", []string{"a"}, nil)
	obs := &countingObserver{}
	s := New("patients", g.load, WithObserver(obs))

	if !s.Fetch(context.Background(), "d1") {
		t.Fatalf("first fetch should start")
	}
	before := s.Snapshot()
	if before.Status != Loading || before.Error != "" {
		t.Fatalf("expected Loading with no error, got %+v", before)
	}
	if s.Fetch(context.Background(), "d1") || s.Fetch(context.Background(), "d2") {
		t.Fatalf("fetch during Loading must be dropped")
	}
	if after := s.Snapshot(); after.Key != before.Key || after.Status != Loading {
		t.Fatalf("suppressed fetch changed state: %+v", after)
	}
	close(g.release)
	waitOrFail(t, s)

	if n := g.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one remote call, got %d", n)
	}
	if obs.count("suppressed") != 2 || obs.count("succeeded") != 1 {
		t.Fatalf("observer counts %v", obs.got)
	}
}

func TestFailedFetchKeepsData(t *testing.T) {
	g := newGated()
	close(g.release)
	g.set("d1", []string{"a"}, nil)
	s := New("patients", g.load, WithDescriber(func(err error) string { return "described: " + err.Error() }))

	s.Fetch(context.Background(), "d1")
	waitOrFail(t, s)

	g.set("d1", nil, errors.New("boom"))
	s.Fetch(context.Background(), "d1")
	waitOrFail(t, s)

	st := s.Snapshot()
	if st.Status != Failed {
		t.Fatalf("status %v", st.Status)
	}
	if st.Error != "described: boom" {
		t.Fatalf("error %q", st.Error)
	}
	if len(st.Data) != 1 || st.Data[0] != "a" || !st.Fresh("d1") {
		t.Fatalf("data must survive a failed refetch, got %+v", st)
	}

	// next fetch clears the error while loading
	g2 := newGated()
	s2 := New("patients", g2.load)
	g2.set("x", nil, errors.New("down"))
	close(g2.release)
	s2.Fetch(context.Background(), "x")
	waitOrFail(t, s2)
	if s2.Snapshot().Error == "" {
		t.Fatalf("expected error")
	}
}

func TestEnsureFetchesOncePerIdentity(t *testing.T) {
	g := newGated()
	close(g.release)
	g.set("d1", []string{"a"}, nil)
	g.set("d2", []string{"b"}, nil)
	s := New("patients", g.load)
	ctx := context.Background()

	if s.Ensure(ctx, "") {
		t.Fatalf("zero key must not fetch")
	}
	if !s.Ensure(ctx, "d1") {
		t.Fatalf("first ensure should fetch")
	}
	waitOrFail(t, s)
	for i := 0; i < 3; i++ {
		if s.Ensure(ctx, "d1") {
			t.Fatalf("populated key must not refetch")
		}
	}
	if !s.Ensure(ctx, "d2") {
		t.Fatalf("new key should fetch")
	}
	waitOrFail(t, s)
	if n := g.calls.Load(); n != 2 {
		t.Fatalf("expected 2 calls, got %d", n)
	}
}

func TestEnsureRetriesNeverPopulatedKey(t *testing.T) {
	g := newGated()
	close(g.release)
	g.set("d1", nil, errors.New("offline"))
	s := New("patients", g.load)
	ctx := context.Background()

	s.Ensure(ctx, "d1")
	waitOrFail(t, s)
	if !s.Ensure(ctx, "d1") {
		t.Fatalf("key that never succeeded should be fetched again")
	}
	waitOrFail(t, s)
}

func TestRefreshForcesFetch(t *testing.T) {
	g := newGated()
	close(g.release)
	g.set("p1", []string{"i1"}, nil)
	s := New("invoices", g.load)
	ctx := context.Background()

	s.Ensure(ctx, "p1")
	waitOrFail(t, s)
	g.set("p1", []string{"i1", "i2"}, nil)
	if err := s.Refresh(ctx, "p1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if st := s.Snapshot(); len(st.Data) != 2 {
		t.Fatalf("refresh must reload, got %+v", st.Data)
	}
	if n := g.calls.Load(); n != 2 {
		t.Fatalf("calls = %d", n)
	}
}

func TestCloseDropsLateResults(t *testing.T) {
	g := newGated()
	g.set("d1", []string{"late"}, nil)
	obs := &countingObserver{}
	s := New("patients", g.load, WithObserver(obs))

	s.Fetch(context.Background(), "d1")
	s.Close()
	waitOrFail(t, s)

	deadline := time.Now().Add(2 * time.Second)
	for obs.count("dropped") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if obs.count("dropped") != 1 {
		t.Fatalf("late result should be dropped")
	}
	if st := s.Snapshot(); st.HasData {
		t.Fatalf("closed slice must not take data: %+v", st)
	}
	if s.Fetch(context.Background(), "d1") {
		t.Fatalf("closed slice must not fetch")
	}
}

func TestResetReturnsToIdle(t *testing.T) {
	g := newGated()
	close(g.release)
	g.set("d1", []string{"a"}, nil)
	s := New("patients", g.load)
	s.Fetch(context.Background(), "d1")
	waitOrFail(t, s)
	s.Reset()
	st := s.Snapshot()
	if st.Status != Idle || st.HasData || st.Data != nil {
		t.Fatalf("unexpected state after reset %+v", st)
	}
	if !s.Ensure(context.Background(), "d1") {
		t.Fatalf("reset slice should fetch again")
	}
	waitOrFail(t, s)
}

func TestCallerCancellationDoesNotAbortFetch(t *testing.T) {
	g := newGated()
	g.set("d1", []string{"a"}, nil)
	s := New("patients", g.load)
	ctx, cancel := context.WithCancel(context.Background())
	s.Fetch(ctx, "d1")
	cancel()
	close(g.release)
	waitOrFail(t, s)
	if st := s.Snapshot(); st.Status != Succeeded {
		t.Fatalf("fetch should finish after the starting request ends, got %v", st.Status)
	}
}

func TestStatusString(t *testing.T) {
	for st, want := range map[Status]string{Idle: "idle", Loading: "loading", Succeeded: "succeeded", Failed: "failed", Status(9): "unknown"} {
		if st.String() != want {
			t.Errorf("%d.String() = %q", st, st.String())
		}
	}
}
