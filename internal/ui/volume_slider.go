package ui

import (
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
)

// VolumeSlider is a compact horizontal 0..100 slider with a small thumb. The
// mouse wheel nudges it by Step.
type VolumeSlider struct {
	widget.BaseWidget
	Step      int
	Value     int
	OnChanged func(int)
}

// NewVolumeSlider creates a slider at v.
func NewVolumeSlider(v int) *VolumeSlider {
	s := &VolumeSlider{Step: 5, Value: normalizeVolume(float64(v))}
	s.ExtendBaseWidget(s)
	return s
}

func (s *VolumeSlider) CreateRenderer() fyne.WidgetRenderer {
	r := &volumeSliderRenderer{
		s:     s,
		track: canvas.NewRectangle(theme.ShadowColor()),
		fill:  canvas.NewRectangle(theme.PrimaryColor()),
		thumb: canvas.NewCircle(theme.ForegroundColor()),
	}
	r.objs = []fyne.CanvasObject{r.track, r.fill, r.thumb}
	return r
}

// SetValue moves the thumb to v and reports a change through OnChanged.
func (s *VolumeSlider) SetValue(v int) {
	s.set(float64(v), true)
}

// Sync moves the thumb without calling OnChanged, for state pushed from the
// session.
func (s *VolumeSlider) Sync(v int) {
	s.set(float64(v), false)
}

func (s *VolumeSlider) set(v float64, notify bool) {
	n := normalizeVolume(v)
	if n == s.Value {
		return
	}
	s.Value = n
	s.Refresh()
	if notify && s.OnChanged != nil {
		s.OnChanged(n)
	}
}

func normalizeVolume(v float64) int {
	return int(math.Round(clampFloat64(v, 0, 100)))
}

// Dragged updates the value based on pointer drag position.
func (s *VolumeSlider) Dragged(e *fyne.DragEvent) {
	s.updateFromPos(e.Position.X, s.Size().Width)
}

func (s *VolumeSlider) DragEnd() {}

// Tapped moves the thumb to the tapped position.
func (s *VolumeSlider) Tapped(e *fyne.PointEvent) {
	s.updateFromPos(e.Position.X, s.Size().Width)
}

// Scrolled adjusts the value using mouse wheel input.
func (s *VolumeSlider) Scrolled(ev *fyne.ScrollEvent) {
	if ev == nil {
		return
	}
	step := max(s.Step, 1)
	switch {
	case ev.Scrolled.DY > 0:
		s.SetValue(s.Value + step)
	case ev.Scrolled.DY < 0:
		s.SetValue(s.Value - step)
	}
}

func (s *VolumeSlider) updateFromPos(px, w float32) {
	if w <= 0 {
		return
	}
	s.SetValue(positionToVolume(px, w))
}

func positionToVolume(px, w float32) int {
	if w <= 0 {
		return 0
	}
	return normalizeVolume(100 * clampFloat64(float64(px/w), 0, 1))
}

func (s *VolumeSlider) MinSize() fyne.Size {
	return fyne.NewSize(100, theme.IconInlineSize())
}

type volumeSliderRenderer struct {
	s     *VolumeSlider
	track *canvas.Rectangle
	fill  *canvas.Rectangle
	thumb *canvas.Circle
	objs  []fyne.CanvasObject
}

func (r *volumeSliderRenderer) Layout(sz fyne.Size) {
	trackH := float32(4)
	y := (sz.Height - trackH) / 2
	r.track.Move(fyne.NewPos(0, y))
	r.track.Resize(fyne.NewSize(sz.Width, trackH))

	fillW := sz.Width * float32(r.s.Value) / 100
	r.fill.Move(fyne.NewPos(0, y))
	r.fill.Resize(fyne.NewSize(fillW, trackH))

	thumbR := theme.IconInlineSize() / 4
	cx := min(max(fillW, thumbR), sz.Width-thumbR)
	cy := sz.Height / 2
	r.thumb.Resize(fyne.NewSize(thumbR*2, thumbR*2))
	r.thumb.Move(fyne.NewPos(cx-thumbR, cy-thumbR))
}

func (r *volumeSliderRenderer) MinSize() fyne.Size { return r.s.MinSize() }

func (r *volumeSliderRenderer) Refresh() {
	r.track.FillColor = theme.ShadowColor()
	r.fill.FillColor = theme.PrimaryColor()
	r.thumb.FillColor = theme.ForegroundColor()
	r.Layout(r.s.Size())
	canvas.Refresh(r.track)
	canvas.Refresh(r.fill)
	canvas.Refresh(r.thumb)
}

func (r *volumeSliderRenderer) Destroy() {}

func (r *volumeSliderRenderer) Objects() []fyne.CanvasObject { return r.objs }
