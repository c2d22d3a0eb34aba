package player

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/edward-ap/lofiradio/internal/session"
)

const (
	speakerRate   = beep.SampleRate(44100)
	speakerBuffer = 100 * time.Millisecond
	resampleQ     = 4
)

// BeepOptions configures NewBeep.
type BeepOptions struct {
	Logger *log.Logger
	// Client defaults to an http.Client without overall timeout.
	Client *http.Client
	// PlayTimeout defaults to DefaultPlayTimeout.
	PlayTimeout time.Duration
}

// Beep decodes mp3 streams in process and plays them through the system
// speaker. It needs no native media framework but only handles mp3.
type Beep struct {
	log     *log.Logger
	client  *http.Client
	timeout time.Duration

	mu           sync.Mutex
	source       string
	volume       int
	speakerReady bool
	released     bool
	// gen identifies the live stream so its end-of-stream callback can tell
	// whether it was stopped on purpose.
	gen    uint64
	stream beep.StreamSeekCloser
	ctrl   *beep.Ctrl
	gain   *effects.Volume
	cancel context.CancelFunc

	events *dispatcher
}

// NewBeep creates a beep device. The speaker is initialised on first play.
func NewBeep(opts BeepOptions) *Beep {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if opts.PlayTimeout <= 0 {
		opts.PlayTimeout = DefaultPlayTimeout
	}
	return &Beep{
		log:     opts.Logger,
		client:  opts.Client,
		timeout: opts.PlayTimeout,
		volume:  100,
		events:  newDispatcher(),
	}
}

// SetEventHandler implements session.Device.
func (b *Beep) SetEventHandler(fn func(session.Event)) { b.events.setHandler(fn) }

// Source implements session.Device.
func (b *Beep) Source() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.source
}

// SetSource stops the current stream when the url changes.
func (b *Beep) SetSource(raw string) error {
	u, err := sanitizeURL(raw)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrReleased
	}
	if u != b.source {
		b.stopLocked()
		b.source = u
	}
	return nil
}

// Play connects, decodes the first frames and starts the speaker. The stream
// keeps playing after ctx ends once Play returned nil.
func (b *Beep) Play(ctx context.Context) error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return ErrReleased
	}
	src := b.source
	if src == "" {
		b.mu.Unlock()
		return ErrNoSource
	}
	b.stopLocked()
	b.gen++
	gen := b.gen
	b.mu.Unlock()

	streamCtx, cancel := context.WithCancel(context.Background())
	// Until the stream starts, the attempt's ctx and the timeout govern it.
	detach := context.AfterFunc(ctx, cancel)
	timer := time.AfterFunc(b.timeout, cancel)
	disarm := func() bool {
		d := detach()
		t := timer.Stop()
		return d && t
	}
	fail := func(err error) error {
		disarm()
		cancel()
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case streamCtx.Err() != nil:
			return fmt.Errorf("%w: %s after %s", ErrPlayTimeout, src, b.timeout)
		}
		return err
	}

	streamer, format, err := b.open(streamCtx, src)
	if err != nil {
		return fail(err)
	}
	if err := b.initSpeaker(); err != nil {
		streamer.Close()
		return fail(err)
	}

	var s beep.Streamer = streamer
	if format.SampleRate != speakerRate {
		s = beep.Resample(resampleQ, format.SampleRate, speakerRate, streamer)
	}
	s = beep.Seq(s, beep.Callback(func() { go b.ended(gen, streamer) }))

	b.mu.Lock()
	if b.released || gen != b.gen || !disarm() {
		b.mu.Unlock()
		streamer.Close()
		return fail(fmt.Errorf("player: stream %s superseded", src))
	}
	gain := &effects.Volume{Streamer: s, Base: 2}
	applyGain(gain, b.volume)
	b.stream, b.gain, b.cancel = streamer, gain, cancel
	b.ctrl = &beep.Ctrl{Streamer: gain}
	ctrl := b.ctrl
	b.mu.Unlock()

	speaker.Play(ctrl)
	b.log.Debug("beep stream started", "url", src, "rate", format.SampleRate, "channels", format.NumChannels)
	return nil
}

func (b *Beep) open(ctx context.Context, src string) (beep.StreamSeekCloser, beep.Format, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("player: request %s: %w", src, err)
	}
	req.Header.Set("User-Agent", "LofiRadio/1.0")
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("player: connect %s: %w", src, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, beep.Format{}, fmt.Errorf("player: %s: %s", src, resp.Status)
	}
	streamer, format, err := mp3.Decode(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, beep.Format{}, fmt.Errorf("player: decode %s: %w", src, err)
	}
	return streamer, format, nil
}

func (b *Beep) initSpeaker() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.speakerReady {
		return nil
	}
	if err := speaker.Init(speakerRate, speakerRate.N(speakerBuffer)); err != nil {
		return fmt.Errorf("player: init speaker: %w", err)
	}
	b.speakerReady = true
	return nil
}

// ended runs when the decoder ran dry. Streams stopped by Pause or a new
// source have a newer generation and are ignored.
func (b *Beep) ended(gen uint64, streamer beep.StreamSeekCloser) {
	b.mu.Lock()
	if gen != b.gen || b.released {
		b.mu.Unlock()
		return
	}
	src := b.source
	b.stopLocked()
	b.mu.Unlock()

	err := streamer.Err()
	if err == nil {
		err = fmt.Errorf("player: stream %s ended", src)
	}
	b.log.Warn("beep stream stopped", "url", src, "err", err)
	b.events.post(session.Event{Kind: session.EventError, Source: src, Err: err})
}

// stopLocked tears the live stream down and invalidates its callback.
func (b *Beep) stopLocked() {
	b.gen++
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	if b.speakerReady && b.ctrl != nil {
		speaker.Clear()
	}
	if b.stream != nil {
		_ = b.stream.Close()
		b.stream = nil
	}
	b.ctrl, b.gain = nil, nil
}

// Pause implements session.Device.
func (b *Beep) Pause() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

// SetVolume applies v in [0,100] to the live stream and later ones.
func (b *Beep) SetVolume(v int) error {
	v = clamp(v, 0, 100)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return ErrReleased
	}
	b.volume = v
	if b.gain != nil {
		speaker.Lock()
		applyGain(b.gain, v)
		speaker.Unlock()
	}
	return nil
}

// Release stops playback and closes the speaker.
func (b *Beep) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	b.stopLocked()
	ready := b.speakerReady
	b.mu.Unlock()
	if ready {
		speaker.Close()
	}
	b.events.close()
}

// applyGain maps a 0..100 slider onto base-2 attenuation so half the slider
// sounds roughly half as loud.
func applyGain(g *effects.Volume, v int) {
	g.Silent = v <= 0
	g.Volume = gainExponent(v)
}

func gainExponent(v int) float64 {
	if v <= 0 {
		return -10
	}
	if v >= 100 {
		return 0
	}
	return 2 * math.Log2(float64(v)/100)
}
