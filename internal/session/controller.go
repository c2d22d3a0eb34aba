// Package session implements the playback session controller: it owns the
// audio device, serializes station changes, retries transient play failures
// and publishes status snapshots to the presentation layers.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/prefs"
)

const (
	// MaxRetries is the number of automatic re-attempts after a failed play.
	MaxRetries = 2
	// SelectRetryDelay is the backoff between attempts of a fresh selection.
	SelectRetryDelay = 3 * time.Second
	// ResumeRetryDelay is the backoff between attempts of a resume.
	ResumeRetryDelay = 2 * time.Second
	// MessageTTL is how long an error banner or restore notice stays visible.
	MessageTTL = 5 * time.Second
	// RebufferTimeout is how long a stream may stall before the session
	// returns to Playing without a ready notification. Devices report a
	// broken stream with an error event instead.
	RebufferTimeout = 10 * time.Second
)

var (
	// ErrNoDevice is returned by New without an audio device.
	ErrNoDevice = errors.New("session: audio device is required")
	// ErrNoPreferences is returned by New without preferences.
	ErrNoPreferences = errors.New("session: preferences are required")
)

type attemptKind int

const (
	attemptSelect attemptKind = iota
	attemptResume
)

func (k attemptKind) delay() time.Duration {
	if k == attemptResume {
		return ResumeRetryDelay
	}
	return SelectRetryDelay
}

// Options carries the controller's collaborators.
type Options struct {
	Catalog     *catalog.Catalog
	Device      Device
	Preferences *prefs.Preferences
	Logger      *log.Logger
	// Titles is optional; without it NowPlaying stays empty.
	Titles TitleWatcher
	// Clock defaults to SystemClock.
	Clock Clock
	// Go runs blocking play attempts; it defaults to starting a goroutine.
	Go func(func())
}

// Controller is the single writer of the playback session. All methods are
// safe for concurrent use and never return errors: outcomes are observed
// through Snapshot and Subscribe.
type Controller struct {
	cat    *catalog.Catalog
	dev    Device
	prefs  *prefs.Preferences
	titles TitleWatcher
	clock  Clock
	run    func(func())
	log    *log.Logger

	mu          sync.Mutex
	closed      bool
	current     *catalog.Station
	status      Status
	volume      int
	errored     []string
	retryCount  int
	message     string
	nowPlaying  string
	restored    bool
	rebuffering bool

	// gen identifies the current play intent. Every superseding command bumps
	// it, so results, timers and titles carrying an older value are dropped.
	gen           uint64
	kind          attemptKind
	inFlight      bool
	attemptCancel context.CancelFunc
	retryTimer    Timer
	rebufferTimer Timer
	titleCancel   context.CancelFunc

	msgGen      uint64
	msgTimer    Timer
	noticeGen   uint64
	noticeTimer Timer

	version uint64

	subMu    sync.Mutex
	subs     map[int]func(Snapshot)
	nextSub  int
	queued   uint64
	pending  *Snapshot
	draining bool
}

// New wires a controller, applies the stored volume to the device and starts
// listening for device events.
func New(opts Options) (*Controller, error) {
	if opts.Device == nil {
		return nil, ErrNoDevice
	}
	if opts.Preferences == nil {
		return nil, ErrNoPreferences
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Go == nil {
		opts.Go = func(f func()) { go f() }
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Catalog == nil {
		opts.Catalog, _ = catalog.New(nil)
	}
	c := &Controller{
		cat:    opts.Catalog,
		dev:    opts.Device,
		prefs:  opts.Preferences,
		titles: opts.Titles,
		clock:  opts.Clock,
		run:    opts.Go,
		log:    opts.Logger.With("session", uuid.NewString()[:8]),
		status: Idle,
		volume: opts.Preferences.Volume(),
		subs:   make(map[int]func(Snapshot)),
	}
	if err := c.dev.SetVolume(c.volume); err != nil {
		c.log.Warn("initial volume not applied", "err", err)
	}
	c.dev.SetEventHandler(c.handleEvent)
	return c, nil
}

// Catalog returns the station catalog the controller navigates.
func (c *Controller) Catalog() *catalog.Catalog { return c.cat }

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn for every state change and returns a cancel func.
// Snapshots are delivered outside the session lock, so fn may call back into
// the controller; it should not block for long.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subMu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			delete(c.subs, id)
			c.subMu.Unlock()
		})
	}
}

// SelectStation switches to st, or stops playback when st is already
// playing. Stations outside the catalog are ignored.
func (c *Controller) SelectStation(st catalog.Station) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	canon, ok := c.cat.ByID(st.ID)
	if !ok {
		c.mu.Unlock()
		c.log.Debug("ignoring station outside catalog", "station", st.ID)
		return
	}

	if c.current != nil && c.current.ID == canon.ID && c.audible() {
		c.supersedeLocked()
		c.dev.Pause()
		c.clearMessageLocked()
		c.retryCount = 0
		c.status = Paused
		c.log.Info("stopped", "station", canon.ID)
		c.commitLocked()
		return
	}

	c.supersedeLocked()
	c.dev.Pause()
	c.clearMessageLocked()
	if !c.restored || c.current == nil || c.current.ID != canon.ID {
		c.clearNoticeLocked()
	}
	c.retryCount = 0
	c.current = &canon
	c.status = Loading
	c.kind = attemptSelect

	url := catalog.NormalizeStreamURL(canon.StreamURL)
	if err := c.dev.SetSource(url); err != nil {
		c.log.Error("stream source rejected", "station", canon.ID, "url", url, "err", err)
		c.failLocked(unplayable(canon))
		c.commitLocked()
		c.prefs.SetLastStation(canon.ID)
		return
	}
	c.log.Info("selecting station", "station", canon.ID, "url", url)
	launch := c.prepareAttemptLocked()
	c.commitLocked()
	c.prefs.SetLastStation(canon.ID)
	launch()
}

// SelectStationByID looks id up in the catalog and selects it.
func (c *Controller) SelectStationByID(id string) bool {
	st, ok := c.cat.ByID(id)
	if !ok {
		return false
	}
	c.SelectStation(st)
	return true
}

// TogglePlayPause pauses an active stream or resumes the current station.
// It is a no-op without a current station.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	if c.closed || c.current == nil {
		c.mu.Unlock()
		return
	}
	c.supersedeLocked()
	c.clearMessageLocked()
	c.retryCount = 0

	if c.status.IsActive() {
		c.dev.Pause()
		c.status = Paused
		c.log.Info("paused", "station", c.current.ID)
		c.commitLocked()
		return
	}

	c.clearNoticeLocked()
	c.status = Loading
	c.kind = attemptResume
	url := catalog.NormalizeStreamURL(c.current.StreamURL)
	if c.dev.Source() != url {
		if err := c.dev.SetSource(url); err != nil {
			c.log.Error("stream source rejected", "station", c.current.ID, "url", url, "err", err)
			c.failLocked(unresumable(*c.current))
			c.commitLocked()
			return
		}
	}
	c.log.Info("resuming", "station", c.current.ID)
	launch := c.prepareAttemptLocked()
	c.commitLocked()
	launch()
}

// Next selects the catalog neighbour after the current station, wrapping.
func (c *Controller) Next() { c.step(c.cat.Next) }

// Previous selects the catalog neighbour before the current station, wrapping.
func (c *Controller) Previous() { c.step(c.cat.Previous) }

func (c *Controller) step(neighbour func(string) (catalog.Station, bool)) {
	c.mu.Lock()
	if c.closed || c.current == nil {
		c.mu.Unlock()
		return
	}
	id := c.current.ID
	c.mu.Unlock()
	if st, ok := neighbour(id); ok {
		c.SelectStation(st)
	}
}

// SetVolume clamps v to [0,100], applies it to the device and persists it.
func (c *Controller) SetVolume(v int) {
	v = min(max(v, 0), 100)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.volume = v
	if err := c.dev.SetVolume(v); err != nil {
		c.log.Warn("volume not applied", "volume", v, "err", err)
	}
	c.commitLocked()
	c.prefs.SetVolume(v)
}

// ToggleFavorite flips id's favorite membership and returns the new state.
func (c *Controller) ToggleFavorite(id string) bool {
	fav := c.prefs.ToggleFavorite(id)
	c.touch()
	return fav
}

// IsFavorite reports whether id is a favorite.
func (c *Controller) IsFavorite(id string) bool { return c.prefs.IsFavorite(id) }

// Favorites returns the favorite station ids.
func (c *Controller) Favorites() []string { return c.prefs.Favorites() }

// SetAutoplay persists whether Restore starts the last station.
func (c *Controller) SetAutoplay(on bool) {
	c.prefs.SetAutoplay(on)
	c.touch()
}

// Autoplay reports the autoplay-last-station flag.
func (c *Controller) Autoplay() bool { return c.prefs.Autoplay() }

// Restore makes the last played station current without touching the
// network. With autoplay enabled it then selects it, so the outcome is
// reported by the regular loading/retry protocol.
func (c *Controller) Restore() {
	c.mu.Lock()
	if c.closed || c.current != nil {
		c.mu.Unlock()
		return
	}
	st, ok := c.cat.ByID(c.prefs.LastStation())
	if !ok {
		c.mu.Unlock()
		return
	}
	c.current = &st
	c.status = Idle
	c.restored = true
	c.noticeGen++
	gen := c.noticeGen
	c.noticeTimer = c.clock.AfterFunc(MessageTTL, func() { c.expireNotice(gen) })
	c.log.Info("restored last station", "station", st.ID)
	autoplay := c.prefs.Autoplay()
	c.commitLocked()
	if autoplay {
		c.SelectStation(st)
	}
}

// DismissError clears the banner message. Station error flags are kept.
func (c *Controller) DismissError() {
	c.mu.Lock()
	if c.closed || c.message == "" {
		c.mu.Unlock()
		return
	}
	c.clearMessageLocked()
	c.commitLocked()
}

// Close cancels pending work and releases the device. Later commands are
// ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.supersedeLocked()
	c.clearMessageLocked()
	c.clearNoticeLocked()
	c.mu.Unlock()

	c.dev.Release()
	c.log.Debug("session closed")
}

// supersedeLocked invalidates the current play intent: pending retries,
// in-flight attempts and title watchers stop affecting the session.
func (c *Controller) supersedeLocked() {
	c.gen++
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.inFlight = false
	c.endRebufferLocked()
	c.stopTitlesLocked()
}

// audible reports whether a stream has started and not been stopped since,
// including while it rebuffers.
func (c *Controller) audible() bool {
	return c.status == Playing || (c.status == Loading && c.rebuffering)
}

func (c *Controller) endRebufferLocked() {
	c.rebuffering = false
	if c.rebufferTimer != nil {
		c.rebufferTimer.Stop()
		c.rebufferTimer = nil
	}
}

// resumeStalled returns a rebuffering stream to Playing when the device
// neither recovered nor failed within RebufferTimeout.
func (c *Controller) resumeStalled(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || !c.rebuffering || c.status != Loading {
		c.mu.Unlock()
		return
	}
	c.rebufferTimer = nil
	c.rebuffering = false
	c.status = Playing
	c.log.Warn("no ready event after rebuffering, assuming stream recovered", "station", c.current.ID)
	c.startTitlesLocked()
	c.commitLocked()
}

// prepareAttemptLocked registers a play attempt for the current generation
// and returns the func that launches it once the lock is released.
func (c *Controller) prepareAttemptLocked() func() {
	ctx, cancel := context.WithCancel(context.Background())
	c.attemptCancel = cancel
	c.inFlight = true
	gen := c.gen
	attempt := c.retryCount
	return func() {
		c.run(func() {
			c.log.Debug("play attempt", "attempt", attempt+1, "gen", gen)
			err := c.dev.Play(ctx)
			c.finishAttempt(gen, err)
		})
	}
}

func (c *Controller) finishAttempt(gen uint64, err error) {
	c.mu.Lock()
	if c.closed || gen != c.gen || !c.inFlight {
		c.mu.Unlock()
		c.log.Debug("dropping stale play result", "gen", gen, "err", err)
		return
	}
	c.inFlight = false
	if c.attemptCancel != nil {
		c.attemptCancel()
		c.attemptCancel = nil
	}

	if err == nil {
		c.status = Playing
		c.retryCount = 0
		c.errored = slices.DeleteFunc(c.errored, func(id string) bool { return id == c.current.ID })
		c.log.Info("playing", "station", c.current.ID)
		c.startTitlesLocked()
		c.commitLocked()
		return
	}

	if c.retryCount < MaxRetries {
		c.retryCount++
		delay := c.kind.delay()
		url := c.dev.Source()
		c.log.Warn("play attempt failed, retrying", "station", c.current.ID, "retry", c.retryCount, "of", MaxRetries, "in", delay, "err", err)
		c.retryTimer = c.clock.AfterFunc(delay, func() { c.retry(gen, url) })
		c.commitLocked()
		return
	}

	c.log.Error("giving up on station", "station", c.current.ID, "err", err)
	if c.kind == attemptResume {
		c.failLocked(unresumable(*c.current))
	} else {
		c.failLocked(unplayable(*c.current))
	}
	c.commitLocked()
}

// retry re-attempts the same source if nothing superseded it meanwhile.
func (c *Controller) retry(gen uint64, url string) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.retryTimer = nil
	if c.dev.Source() != url {
		c.mu.Unlock()
		c.log.Debug("retry target changed, skipping", "url", url)
		return
	}
	launch := c.prepareAttemptLocked()
	c.mu.Unlock()
	launch()
}

func unplayable(st catalog.Station) string {
	return fmt.Sprintf("Could not play %s. Please try another station.", st.DisplayName())
}

func unresumable(st catalog.Station) string {
	return fmt.Sprintf("Could not play %s. Please try again.", st.DisplayName())
}

// failLocked moves to Error, flags the station and shows msg for MessageTTL.
func (c *Controller) failLocked(msg string) {
	c.status = Error
	c.inFlight = false
	c.stopTitlesLocked()
	if c.current != nil && !slices.Contains(c.errored, c.current.ID) {
		c.errored = append(c.errored, c.current.ID)
	}
	c.setMessageLocked(msg)
}

func (c *Controller) setMessageLocked(msg string) {
	c.clearMessageLocked()
	c.message = msg
	gen := c.msgGen
	c.msgTimer = c.clock.AfterFunc(MessageTTL, func() { c.expireMessage(gen) })
}

func (c *Controller) clearMessageLocked() {
	c.msgGen++
	if c.msgTimer != nil {
		c.msgTimer.Stop()
		c.msgTimer = nil
	}
	c.message = ""
}

func (c *Controller) expireMessage(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.msgGen {
		c.mu.Unlock()
		return
	}
	c.msgTimer = nil
	c.message = ""
	c.commitLocked()
}

func (c *Controller) clearNoticeLocked() {
	c.noticeGen++
	if c.noticeTimer != nil {
		c.noticeTimer.Stop()
		c.noticeTimer = nil
	}
	c.restored = false
}

func (c *Controller) expireNotice(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.noticeGen {
		c.mu.Unlock()
		return
	}
	c.noticeTimer = nil
	c.restored = false
	c.commitLocked()
}

func (c *Controller) startTitlesLocked() {
	if c.titles == nil || c.current == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.titleCancel = cancel
	gen := c.gen
	url := c.dev.Source()
	go c.titles.Watch(ctx, url, func(title string) { c.setTitle(gen, title) })
}

func (c *Controller) stopTitlesLocked() {
	if c.titleCancel != nil {
		c.titleCancel()
		c.titleCancel = nil
	}
	c.nowPlaying = ""
}

func (c *Controller) setTitle(gen uint64, title string) {
	c.mu.Lock()
	if c.closed || gen != c.gen || c.status != Playing || title == c.nowPlaying {
		c.mu.Unlock()
		return
	}
	c.nowPlaying = title
	c.commitLocked()
}

// handleEvent applies device notifications. Play attempts are governed by
// their result, so events only matter once a stream has started.
func (c *Controller) handleEvent(ev Event) {
	c.mu.Lock()
	if c.closed || c.current == nil {
		c.mu.Unlock()
		return
	}
	if ev.Source != "" && ev.Source != catalog.NormalizeStreamURL(c.current.StreamURL) {
		c.mu.Unlock()
		c.log.Debug("dropping stale device event", "event", ev.Kind, "source", ev.Source)
		return
	}

	switch ev.Kind {
	case EventLoading:
		if c.status == Playing {
			c.status = Loading
			c.rebuffering = true
			c.stopTitlesLocked()
			gen := c.gen
			c.rebufferTimer = c.clock.AfterFunc(RebufferTimeout, func() { c.resumeStalled(gen) })
			c.log.Info("rebuffering", "station", c.current.ID)
			c.commitLocked()
			return
		}
	case EventReady:
		if c.status == Loading && c.rebuffering && !c.inFlight {
			c.status = Playing
			c.endRebufferLocked()
			c.startTitlesLocked()
			c.commitLocked()
			return
		}
	case EventError:
		if c.audible() {
			c.log.Error("stream failed", "station", c.current.ID, "err", ev.Err)
			c.supersedeLocked()
			c.dev.Pause()
			c.failLocked("Failed to play this station. Please try another one.")
			c.commitLocked()
			return
		}
	}
	c.mu.Unlock()
}

// touch publishes a snapshot for changes held outside the session (favorites,
// autoplay).
func (c *Controller) touch() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.commitLocked()
}

// commitLocked bumps the version, releases the lock and publishes.
func (c *Controller) commitLocked() {
	c.version++
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.publish(snap)
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		Version:            c.version,
		Status:             c.status,
		Volume:             c.volume,
		StationsWithErrors: slices.Clone(c.errored),
		RetryCount:         c.retryCount,
		Message:            c.message,
		NowPlaying:         c.nowPlaying,
		Restored:           c.restored,
		Autoplay:           c.prefs.Autoplay(),
		Favorites:          c.prefs.Favorites(),
	}
	if c.current != nil {
		st := *c.current
		s.Station = &st
	}
	return s
}

// publish delivers s to subscribers one snapshot at a time. A publish that
// arrives while another goroutine (or a subscriber) is delivering is queued;
// only the newest queued snapshot is delivered.
func (c *Controller) publish(s Snapshot) {
	c.subMu.Lock()
	if s.Version <= c.queued {
		c.subMu.Unlock()
		return
	}
	c.queued = s.Version
	c.pending = &s
	if c.draining {
		c.subMu.Unlock()
		return
	}
	c.draining = true
	for c.pending != nil {
		snap := *c.pending
		c.pending = nil
		fns := make([]func(Snapshot), 0, len(c.subs))
		for _, fn := range c.subs {
			fns = append(fns, fn)
		}
		c.subMu.Unlock()
		for _, fn := range fns {
			fn(snap)
		}
		c.subMu.Lock()
	}
	c.draining = false
	c.subMu.Unlock()
}
