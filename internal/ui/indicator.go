package ui

import (
	"image/color"
	"math"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"

	"github.com/edward-ap/lofiradio/internal/session"
)

var (
	indicatorIdle  = color.NRGBA{0x80, 0x80, 0x80, 0xFF}
	indicatorError = color.NRGBA{0xE0, 0x40, 0x40, 0xFF}
)

// StreamIndicator is a small circle that mirrors the playback status: it
// breathes through green hues while playing, blinks amber while loading and
// turns red on error.
type StreamIndicator struct {
	wrap   *fyne.Container
	circle *canvas.Circle

	mu     sync.Mutex
	status session.Status
	stop   chan struct{}
}

// NewStreamIndicator constructs a StreamIndicator with the given diameter.
func NewStreamIndicator(diameter float32) *StreamIndicator {
	c := canvas.NewCircle(indicatorIdle)
	c.StrokeColor = color.NRGBA{}
	inner := container.New(layout.NewGridWrapLayout(fyne.NewSize(diameter, diameter)), c)
	return &StreamIndicator{wrap: container.NewCenter(inner), circle: c, status: session.Idle}
}

// CanvasObject returns the fyne object suitable for embedding in layouts.
func (s *StreamIndicator) CanvasObject() fyne.CanvasObject { return s.wrap }

// Status returns the status last applied.
func (s *StreamIndicator) Status() session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SetStatus switches the animation for st. Repeating the same status is a
// no-op so snapshots can be applied blindly.
func (s *StreamIndicator) SetStatus(st session.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st == s.status {
		return
	}
	s.status = st
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	switch st {
	case session.Playing:
		s.stop = make(chan struct{})
		go s.animate(s.stop, 90*time.Millisecond, breathe())
	case session.Loading:
		s.stop = make(chan struct{})
		go s.animate(s.stop, 400*time.Millisecond, blink())
	case session.Error:
		s.fill(indicatorError)
	default:
		s.fill(indicatorIdle)
	}
}

// Close stops any running animation.
func (s *StreamIndicator) Close() { s.SetStatus(session.Idle) }

func (s *StreamIndicator) fill(col color.Color) {
	CallOnMain(func() {
		s.circle.FillColor = col
		s.circle.Refresh()
	})
}

func (s *StreamIndicator) animate(stop <-chan struct{}, every time.Duration, next func() color.NRGBA) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		s.fill(next())
		select {
		case <-stop:
			return
		case <-t.C:
		}
	}
}

// breathe cycles through green hues.
func breathe() func() color.NRGBA {
	hue := 90.0
	return func() color.NRGBA {
		hue += 4
		if hue > 150 {
			hue = 90
		}
		return hsvToNRGBA(hue, 0.65, 0.95)
	}
}

// blink alternates amber and the idle gray.
func blink() func() color.NRGBA {
	on := false
	return func() color.NRGBA {
		on = !on
		if on {
			return hsvToNRGBA(38, 0.9, 1)
		}
		return indicatorIdle
	}
}

// hsvToNRGBA converts HSV (0..360, 0..1, 0..1) to color.NRGBA.
func hsvToNRGBA(h, s, v float64) color.NRGBA {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60.0, 2)-1))
	m := v - c
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return color.NRGBA{
		R: uint8((r+m)*255 + 0.5),
		G: uint8((g+m)*255 + 0.5),
		B: uint8((b+m)*255 + 0.5),
		A: 0xFF,
	}
}
