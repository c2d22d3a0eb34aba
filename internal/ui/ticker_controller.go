package ui

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/widget"
)

// TickerController shows one line of text in a label and scrolls it as a
// marquee when it does not fit. SetText is safe to call from any goroutine.
type TickerController struct {
	lbl    *widget.Label
	parent fyne.CanvasObject // measures the visible width
	bind   binding.String

	mu   sync.Mutex
	text string
	stop chan struct{}

	speed   time.Duration
	padding string
}

// NewTickerController binds lbl and measures overflow against parent.
func NewTickerController(lbl *widget.Label, parent fyne.CanvasObject) *TickerController {
	b := binding.NewString()
	lbl.Bind(b)
	return &TickerController{
		lbl:     lbl,
		parent:  parent,
		bind:    b,
		speed:   120 * time.Millisecond,
		padding: "   ",
	}
}

// Text returns the text last set, unscrolled.
func (tc *TickerController) Text() string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.text
}

// Close stops scrolling.
func (tc *TickerController) Close() {
	tc.mu.Lock()
	tc.halt()
	tc.mu.Unlock()
}

func (tc *TickerController) halt() {
	if tc.stop != nil {
		close(tc.stop)
		tc.stop = nil
	}
}

// SetText replaces the ticker text. Setting the current text again keeps an
// ongoing scroll in place.
func (tc *TickerController) SetText(text string) {
	tc.mu.Lock()
	if text == tc.text {
		tc.mu.Unlock()
		return
	}
	tc.halt()
	tc.text = text
	tc.mu.Unlock()

	_ = tc.bind.Set(text)

	textW := measureLabelTextWidth(tc.lbl, text)
	if !tickerNeedsScroll(textW, tc.parent.Size().Width) {
		return
	}
	stop := make(chan struct{})
	tc.mu.Lock()
	if tc.text != text {
		tc.mu.Unlock()
		return
	}
	tc.stop = stop
	tc.mu.Unlock()
	go tc.scroll(stop, text, textW)
}

func (tc *TickerController) scroll(stop <-chan struct{}, text string, textW float32) {
	work := []rune(tc.padding + text + tc.padding)
	t := time.NewTicker(tc.speed)
	defer t.Stop()
	offset := 0
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		if !tickerNeedsScroll(textW, tc.parent.Size().Width) {
			_ = tc.bind.Set(text)
			continue
		}
		offset = (offset + 1) % len(work)
		_ = tc.bind.Set(string(work[offset:]) + string(work[:offset]))
	}
}

// measureLabelTextWidth estimates the width the label would need for text.
func measureLabelTextWidth(lbl *widget.Label, text string) float32 {
	if lbl == nil {
		return 0
	}
	tmp := widget.NewLabel(text)
	tmp.Alignment = lbl.Alignment
	tmp.TextStyle = lbl.TextStyle
	tmp.Importance = lbl.Importance
	return tmp.MinSize().Width
}
