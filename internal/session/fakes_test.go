package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/logging"
	"github.com/edward-ap/lofiradio/internal/prefs"
)

var errStream = errors.New("stream unavailable")

type fakeDevice struct {
	mu       sync.Mutex
	source   string
	volume   int
	results  []error
	plays    []string
	pauses   int
	released bool
	handler  func(Event)
}

func (d *fakeDevice) SetSource(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = url
	return nil
}

func (d *fakeDevice) Source() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.source
}

// Play pops the next scripted result; an empty script succeeds.
func (d *fakeDevice) Play(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plays = append(d.plays, d.source)
	if len(d.results) == 0 {
		return nil
	}
	err := d.results[0]
	d.results = d.results[1:]
	return err
}

func (d *fakeDevice) Pause() {
	d.mu.Lock()
	d.pauses++
	d.mu.Unlock()
}

func (d *fakeDevice) SetVolume(v int) error {
	d.mu.Lock()
	d.volume = v
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) SetEventHandler(fn func(Event)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

func (d *fakeDevice) Release() {
	d.mu.Lock()
	d.released = true
	d.mu.Unlock()
}

func (d *fakeDevice) fail(errs ...error) {
	d.mu.Lock()
	d.results = append(d.results, errs...)
	d.mu.Unlock()
}

func (d *fakeDevice) emit(kind EventKind, source string) {
	d.mu.Lock()
	fn := d.handler
	d.mu.Unlock()
	fn(Event{Kind: kind, Source: source, Err: errStream})
}

func (d *fakeDevice) playCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.plays)
}

func (d *fakeDevice) gain() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.volume
}

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Duration
	f     func()
	done  bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if !t.done && t.at <= target && (next == nil || t.at < next.at) {
				next = t
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// queue holds play attempts until the test runs them.
type queue struct {
	mu    sync.Mutex
	funcs []func()
}

func (q *queue) Go(f func()) {
	q.mu.Lock()
	q.funcs = append(q.funcs, f)
	q.mu.Unlock()
}

func (q *queue) runNext(t *testing.T) {
	t.Helper()
	q.mu.Lock()
	if len(q.funcs) == 0 {
		q.mu.Unlock()
		t.Fatal("no queued play attempt")
	}
	f := q.funcs[0]
	q.funcs = q.funcs[1:]
	q.mu.Unlock()
	f()
}

type titleFeed struct {
	mu      sync.Mutex
	onTitle func(string)
	ctx     context.Context
	started chan struct{}
}

func newTitleFeed() *titleFeed { return &titleFeed{started: make(chan struct{}, 8)} }

func (f *titleFeed) Watch(ctx context.Context, _ string, onTitle func(string)) {
	f.mu.Lock()
	f.ctx = ctx
	f.onTitle = onTitle
	f.mu.Unlock()
	f.started <- struct{}{}
	<-ctx.Done()
}

func (f *titleFeed) send(t *testing.T, title string) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("title watcher not started")
	}
	f.mu.Lock()
	fn := f.onTitle
	f.mu.Unlock()
	fn(title)
}

type harness struct {
	ctl   *Controller
	dev   *fakeDevice
	clock *fakeClock
	prefs *prefs.Preferences
	store prefs.Store
	cat   *catalog.Catalog
}

type harnessOption func(*Options)

func newHarness(t *testing.T, stations []catalog.Station, opts ...harnessOption) *harness {
	t.Helper()
	return newHarnessWithStore(t, prefs.NewMemoryStore(), stations, opts...)
}

func newHarnessWithStore(t *testing.T, store prefs.Store, stations []catalog.Station, opts ...harnessOption) *harness {
	t.Helper()
	cat, err := catalog.New(stations)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	h := &harness{
		dev:   &fakeDevice{},
		clock: &fakeClock{},
		store: store,
		cat:   cat,
	}
	h.prefs = prefs.Load(store, logging.Discard())
	o := Options{
		Catalog:     cat,
		Device:      h.dev,
		Preferences: h.prefs,
		Logger:      logging.Discard(),
		Clock:       h.clock,
		Go:          func(f func()) { f() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.ctl, err = New(o)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(h.ctl.Close)
	return h
}

func abc() []catalog.Station {
	return []catalog.Station{
		{ID: "a", Name: "Alpha", StreamURL: "http://a.example/stream"},
		{ID: "b", Name: "Bravo", StreamURL: "https://b.example/stream"},
		{ID: "c", Name: "Charlie", StreamURL: "c.example/stream"},
	}
}

func (h *harness) station(t *testing.T, id string) catalog.Station {
	t.Helper()
	st, ok := h.cat.ByID(id)
	if !ok {
		t.Fatalf("no station %q", id)
	}
	return st
}

func expectState(t *testing.T, s Snapshot, id string, status Status) {
	t.Helper()
	if s.StationID() != id || s.Status != status {
		t.Fatalf("state = %q/%s, want %q/%s", s.StationID(), s.Status, id, status)
	}
}
