// Package player provides the audio devices driven by the session
// controller: a libVLC backed player and a pure Go mp3 decoder built on beep.
// Both serialise their native calls and report stream notifications on a
// goroutine of their own.
package player

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/edward-ap/lofiradio/internal/session"
)

var (
	// ErrNoSource is returned by Play before a source was set.
	ErrNoSource = errors.New("player: no source set")
	// ErrPlayTimeout is returned when a stream does not start in time.
	ErrPlayTimeout = errors.New("player: stream did not start in time")
	// ErrReleased is returned by devices used after Release.
	ErrReleased = errors.New("player: device released")
)

// DefaultPlayTimeout bounds how long Play waits for audio.
const DefaultPlayTimeout = 15 * time.Second

// Backend names accepted by config and CLI.
const (
	BackendVLC  = "vlc"
	BackendBeep = "beep"
)

var (
	_ session.Device = (*VLC)(nil)
	_ session.Device = (*Beep)(nil)
)

func clamp(v, lo, hi int) int { return min(max(v, lo), hi) }

// sanitizeURL trims whitespace and control characters pasted along with a
// URL and rejects anything that is not an absolute http(s) address.
func sanitizeURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", fmt.Errorf("player: empty stream url")
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("player: stream url %q: %w", u, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return "", fmt.Errorf("player: stream url %q is not an http(s) address", u)
	}
	return u, nil
}

// dispatcher delivers device events in order on its own goroutine so that
// handlers never run inside a device command or a native callback.
type dispatcher struct {
	mu      sync.Mutex
	handler func(session.Event)
	queue   chan session.Event
	done    chan struct{}
	once    sync.Once
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		queue: make(chan session.Event, 64),
		done:  make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) setHandler(fn func(session.Event)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

// post never blocks; events are dropped when the queue is full or closed.
func (d *dispatcher) post(ev session.Event) {
	select {
	case <-d.done:
	case d.queue <- ev:
	default:
	}
}

func (d *dispatcher) run() {
	for {
		select {
		case <-d.done:
			return
		case ev := <-d.queue:
			d.mu.Lock()
			fn := d.handler
			d.mu.Unlock()
			if fn != nil {
				fn(ev)
			}
		}
	}
}

func (d *dispatcher) close() { d.once.Do(func() { close(d.done) }) }
