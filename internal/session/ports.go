package session

import (
	"context"
	"time"
)

// Status is the controller-wide playback state.
type Status string

const (
	Idle    Status = "idle"
	Loading Status = "loading"
	Playing Status = "playing"
	Paused  Status = "paused"
	Error   Status = "error"
)

// String returns the status name.
func (s Status) String() string { return string(s) }

// IsActive reports whether the stream is playing or about to.
func (s Status) IsActive() bool { return s == Loading || s == Playing }

// EventKind enumerates device notifications.
type EventKind int

const (
	// EventLoading is emitted when the device starts (re)buffering.
	EventLoading EventKind = iota
	// EventReady is emitted when the device can produce audio.
	EventReady
	// EventError is emitted when the stream fails after it started.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLoading:
		return "loading"
	case EventReady:
		return "ready"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a device notification. Source is the URL the device was playing
// when the event happened; events for another source are stale.
type Event struct {
	Kind   EventKind
	Source string
	Err    error
}

// Device is the single audio output owned by the controller.
//
// Play blocks until audio starts, the attempt fails, or ctx is done. The
// event handler must not be invoked synchronously from SetSource, Pause,
// SetVolume or Release.
type Device interface {
	SetSource(url string) error
	Source() string
	Play(ctx context.Context) error
	Pause()
	SetVolume(v int) error
	SetEventHandler(fn func(Event))
	Release()
}

// TitleWatcher reports "now playing" titles for a stream until ctx is done.
type TitleWatcher interface {
	Watch(ctx context.Context, streamURL string, onTitle func(string))
}

// Clock schedules the controller's retry and banner timers.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock returns a Clock backed by time.AfterFunc.
func SystemClock() Clock { return realClock{} }
