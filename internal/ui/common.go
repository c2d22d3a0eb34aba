// Package ui contains small fyne widgets and helpers shared by the desktop
// window.
package ui

import "fyne.io/fyne/v2"

type runOnMainDriver interface {
	RunOnMain(func())
}

type callOnMainDriver interface {
	CallOnMain(func())
}

// CallOnMain dispatches f onto the UI thread if the current fyne driver
// supports it; otherwise f runs inline.
func CallOnMain(f func()) {
	if f == nil {
		return
	}
	app := fyne.CurrentApp()
	if app == nil {
		f()
		return
	}
	switch drv := app.Driver().(type) {
	case runOnMainDriver:
		drv.RunOnMain(f)
	case callOnMainDriver:
		drv.CallOnMain(f)
	default:
		f()
	}
}

func clampFloat64(v, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return min(max(v, lo), hi)
}

const tickerWidthEpsilon float32 = 0.5

// tickerNeedsScroll decides whether marquee scrolling is required.
func tickerNeedsScroll(textWidth, viewportWidth float32) bool {
	if textWidth <= 0 {
		return false
	}
	return textWidth-max(viewportWidth, 0) > tickerWidthEpsilon
}
