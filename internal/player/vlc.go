package player

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	vlc "github.com/adrg/libvlc-go/v3"
	"github.com/charmbracelet/log"

	"github.com/edward-ap/lofiradio/internal/logging"
	"github.com/edward-ap/lofiradio/internal/session"
)

// VLCOptions configures NewVLC.
type VLCOptions struct {
	Logger *log.Logger
	// NetworkCaching is the libVLC network/live caching in milliseconds.
	NetworkCaching int
	// PlayTimeout defaults to DefaultPlayTimeout.
	PlayTimeout time.Duration
}

// VLC plays streams through libVLC.
type VLC struct {
	log     *log.Logger
	caching int
	timeout time.Duration

	// vlcMu serialises every libVLC call.
	vlcMu    sync.Mutex
	p        *vlc.Player
	media    *vlc.Media
	em       *vlc.EventManager
	eventIDs []vlc.EventID

	// source is read from libVLC callbacks, which must not take locks that
	// are held around libVLC calls.
	source atomic.Value

	mu       sync.Mutex
	waiter   chan error
	released bool

	events *dispatcher
}

// NewVLC initialises libVLC and creates the media player.
func NewVLC(opts VLCOptions) (*VLC, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.NetworkCaching <= 0 {
		opts.NetworkCaching = 1500
	}
	if opts.PlayTimeout <= 0 {
		opts.PlayTimeout = DefaultPlayTimeout
	}
	v := &VLC{
		log:     opts.Logger,
		caching: opts.NetworkCaching,
		timeout: opts.PlayTimeout,
	}
	v.source.Store("")

	// Bundled builds ship libVLC plugins next to the executable.
	if exe, err := os.Executable(); err == nil {
		plugins := filepath.Join(filepath.Dir(exe), "plugins")
		if st, err := os.Stat(plugins); err == nil && st.IsDir() {
			_ = os.Setenv("VLC_PLUGIN_PATH", plugins)
		}
	}

	caching := strconv.Itoa(v.caching)
	args := []string{
		"--no-video",
		"--no-color",
		"--network-caching=" + caching,
		"--live-caching=" + caching,
		"--http-reconnect",
	}
	if logging.TraceEnabled() {
		args = append(args, "--verbose=2", "--file-logging", "--log-verbose=2", "--logfile=vlc.log")
	}

	v.vlcMu.Lock()
	defer v.vlcMu.Unlock()
	if err := vlc.Init(args...); err != nil {
		return nil, fmt.Errorf("player: libvlc init: %w", err)
	}
	p, err := vlc.NewPlayer()
	if err != nil {
		vlc.Release()
		return nil, fmt.Errorf("player: new vlc player: %w", err)
	}
	em, err := p.EventManager()
	if err != nil {
		p.Release()
		vlc.Release()
		return nil, fmt.Errorf("player: vlc event manager: %w", err)
	}
	v.p, v.em = p, em
	v.events = newDispatcher()

	for _, ev := range []vlc.Event{
		vlc.MediaPlayerOpening,
		vlc.MediaPlayerPlaying,
		vlc.MediaPlayerEncounteredError,
		vlc.MediaPlayerEndReached,
	} {
		id, err := em.Attach(ev, v.onVLCEvent, nil)
		if err != nil {
			v.log.Warn("vlc event not attached", "event", ev, "err", err)
			continue
		}
		v.eventIDs = append(v.eventIDs, id)
	}
	v.log.Info("libvlc ready", "version", vlc.Version().String(), "caching_ms", v.caching)
	return v, nil
}

// onVLCEvent runs on a libVLC thread. It must not call back into libVLC.
func (v *VLC) onVLCEvent(ev vlc.Event, _ interface{}) {
	src, _ := v.source.Load().(string)
	out, ok := translateEvent(ev, src)
	if !ok {
		return
	}
	switch out.Kind {
	case session.EventReady:
		v.settle(nil)
	case session.EventError:
		v.settle(out.Err)
	}
	v.events.post(out)
}

// translateEvent maps libVLC player events onto session events. Buffering is
// not reported: libVLC keeps emitting it after Playing without a matching
// Playing once the cache refills.
func translateEvent(ev vlc.Event, src string) (session.Event, bool) {
	switch ev {
	case vlc.MediaPlayerOpening:
		return session.Event{Kind: session.EventLoading, Source: src}, true
	case vlc.MediaPlayerPlaying:
		return session.Event{Kind: session.EventReady, Source: src}, true
	case vlc.MediaPlayerEncounteredError:
		return session.Event{Kind: session.EventError, Source: src, Err: fmt.Errorf("player: libvlc failed to play %s", src)}, true
	case vlc.MediaPlayerEndReached:
		return session.Event{Kind: session.EventError, Source: src, Err: fmt.Errorf("player: stream %s ended", src)}, true
	}
	return session.Event{}, false
}

// settle resolves the pending Play call, if any.
func (v *VLC) settle(err error) {
	v.mu.Lock()
	w := v.waiter
	v.waiter = nil
	v.mu.Unlock()
	if w != nil {
		w <- err
	}
}

// SetEventHandler implements session.Device.
func (v *VLC) SetEventHandler(fn func(session.Event)) { v.events.setHandler(fn) }

// Source implements session.Device.
func (v *VLC) Source() string {
	s, _ := v.source.Load().(string)
	return s
}

// SetSource loads url as the player's media without starting playback.
func (v *VLC) SetSource(raw string) error {
	u, err := sanitizeURL(raw)
	if err != nil {
		return err
	}
	if v.isReleased() {
		return ErrReleased
	}

	v.vlcMu.Lock()
	defer v.vlcMu.Unlock()
	if v.p == nil {
		return ErrReleased
	}
	m, err := vlc.NewMediaFromURL(u)
	if err != nil {
		return fmt.Errorf("player: new media %s: %w", u, err)
	}
	caching := strconv.Itoa(v.caching)
	_ = m.AddOptions(
		":network-caching="+caching,
		":live-caching="+caching,
		":http-reconnect",
		":demux=any",
	)
	if err := v.p.SetMedia(m); err != nil {
		m.Release()
		return fmt.Errorf("player: set media %s: %w", u, err)
	}
	if v.media != nil {
		v.media.Release()
	}
	v.media = m
	v.source.Store(u)
	v.log.Debug("media loaded", "url", u)
	return nil
}

// Play starts the loaded media and waits until libVLC reports audio, an
// error, the play timeout, or ctx ends.
func (v *VLC) Play(ctx context.Context) error {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return ErrReleased
	}
	src := v.Source()
	if src == "" {
		v.mu.Unlock()
		return ErrNoSource
	}
	w := make(chan error, 1)
	v.waiter = w
	v.mu.Unlock()
	defer v.dropWaiter(w)

	v.vlcMu.Lock()
	err := v.p.Play()
	v.vlcMu.Unlock()
	if err != nil {
		return fmt.Errorf("player: play %s: %w", src, err)
	}

	timer := time.NewTimer(v.timeout)
	defer timer.Stop()
	select {
	case err := <-w:
		return err
	case <-timer.C:
		v.stop()
		return fmt.Errorf("%w: %s after %s", ErrPlayTimeout, src, v.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *VLC) dropWaiter(w chan error) {
	v.mu.Lock()
	if v.waiter == w {
		v.waiter = nil
	}
	v.mu.Unlock()
}

// Pause stops the stream. Live radio is not buffered while paused, so the
// media is stopped rather than paused and resuming reconnects.
func (v *VLC) Pause() {
	if v.isReleased() {
		return
	}
	v.stop()
}

func (v *VLC) stop() {
	v.vlcMu.Lock()
	defer v.vlcMu.Unlock()
	if v.p != nil {
		_ = v.p.Stop()
	}
}

// SetVolume applies v in [0,100].
func (v *VLC) SetVolume(vol int) error {
	if v.isReleased() {
		return ErrReleased
	}
	v.vlcMu.Lock()
	defer v.vlcMu.Unlock()
	if v.p == nil {
		return ErrReleased
	}
	return v.p.SetVolume(clamp(vol, 0, 100))
}

// Release stops playback and frees libVLC.
func (v *VLC) Release() {
	v.mu.Lock()
	if v.released {
		v.mu.Unlock()
		return
	}
	v.released = true
	v.mu.Unlock()

	v.vlcMu.Lock()
	if v.em != nil {
		v.em.Detach(v.eventIDs...)
	}
	if v.p != nil {
		_ = v.p.Stop()
		_ = v.p.Release()
		v.p = nil
	}
	if v.media != nil {
		_ = v.media.Release()
		v.media = nil
	}
	vlc.Release()
	v.vlcMu.Unlock()

	v.events.close()
	v.log.Debug("libvlc released")
}

func (v *VLC) isReleased() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.released
}
