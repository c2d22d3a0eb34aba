// Package radioapp presents a playback session in a fyne desktop window: the
// station list, transport controls, volume and the status banner.
package radioapp

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/charmbracelet/log"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/session"
	"github.com/edward-ap/lofiradio/internal/ui"
)

const (
	windowTitle = "LofiRadio"
	// VolumeStep is the change applied by the Up and Down keys.
	VolumeStep = 5

	defaultWidth  = 380
	defaultHeight = 520
	barHeight     = 40
)

// Controller is the part of [session.Controller] the window drives.
type Controller interface {
	Catalog() *catalog.Catalog
	Snapshot() session.Snapshot
	Subscribe(fn func(session.Snapshot)) func()
	SelectStation(st catalog.Station)
	TogglePlayPause()
	Next()
	Previous()
	SetVolume(v int)
	ToggleFavorite(id string) bool
	SetAutoplay(on bool)
	DismissError()
}

var _ Controller = (*session.Controller)(nil)

// App owns the main window and mirrors session snapshots into its widgets.
type App struct {
	fa   fyne.App
	w    fyne.Window
	ctrl Controller
	log  *log.Logger

	// snap and stations are only touched on the UI thread.
	snap     session.Snapshot
	stations []catalog.Station
	cancel   func()

	prevBtn   *widget.Button
	playBtn   *widget.Button
	nextBtn   *widget.Button
	favBtn    *widget.Button
	volBtn    *widget.Button
	volSlider *ui.VolumeSlider
	ind       *ui.StreamIndicator
	ticker    *ui.TickerController
	tickerBg  *canvas.Rectangle

	banner     *widget.Label
	bannerBox  *fyne.Container
	filter     *widget.Entry
	list       *widget.List
	autoplay   *widget.Check
	lastVolume int

	// silentUpdating suppresses widget callbacks while a snapshot is applied.
	silentUpdating bool
}

// New builds the main window of fa around ctrl. Call Run to show it.
func New(fa fyne.App, ctrl Controller, logger *log.Logger) *App {
	if logger == nil {
		logger = log.Default()
	}
	fa.Settings().SetTheme(theme.DarkTheme())
	fa.SetIcon(theme.MediaMusicIcon())

	w := fa.NewWindow(windowTitle)
	w.SetMaster()
	w.Resize(fyne.NewSize(defaultWidth, defaultHeight))

	a := &App{
		fa:       fa,
		w:        w,
		ctrl:     ctrl,
		log:      logger.With("component", "gui"),
		snap:     ctrl.Snapshot(),
		stations: ctrl.Catalog().All(),
	}
	a.lastVolume = a.snap.Volume
	a.buildUI()
	a.apply(a.snap)

	a.cancel = ctrl.Subscribe(func(s session.Snapshot) {
		ui.CallOnMain(func() { a.apply(s) })
	})
	w.Canvas().SetOnTypedKey(a.handleShortcutKey)
	w.SetCloseIntercept(func() {
		a.shutdown()
		w.Close()
	})
	return a
}

// Window returns the main window.
func (a *App) Window() fyne.Window { return a.w }

// Run shows the window and enters the fyne event loop.
func (a *App) Run() {
	a.w.ShowAndRun()
	a.shutdown()
}

func (a *App) shutdown() {
	if a.cancel == nil {
		return
	}
	a.cancel()
	a.cancel = nil
	a.ind.Close()
	a.ticker.Close()
	a.log.Debug("window closed")
}

func (a *App) buildUI() {
	a.w.SetContent(container.NewBorder(
		container.NewVBox(a.buildControlBar(), a.buildBanner(), a.buildFilter()),
		a.buildFooter(),
		nil, nil,
		a.buildStationList(),
	))
}

// buildControlBar lays out prev/play/next, the status ticker and the volume
// controls in one strip.
func (a *App) buildControlBar() fyne.CanvasObject {
	a.prevBtn = widget.NewButtonWithIcon("", theme.MediaSkipPreviousIcon(), a.ctrl.Previous)
	a.playBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), a.ctrl.TogglePlayPause)
	a.nextBtn = widget.NewButtonWithIcon("", theme.MediaSkipNextIcon(), a.ctrl.Next)
	for _, b := range []*widget.Button{a.prevBtn, a.playBtn, a.nextBtn} {
		b.Importance = widget.LowImportance
	}
	transport := container.NewHBox(a.prevBtn, a.playBtn, a.nextBtn)

	lbl := widget.NewLabel("")
	lbl.Truncation = fyne.TextTruncateClip
	labelWrap := container.NewStack(lbl)
	a.ticker = ui.NewTickerController(lbl, labelWrap)
	a.ind = ui.NewStreamIndicator(12)

	a.tickerBg = canvas.NewRectangle(color.NRGBA{0x00, 0x99, 0xFF, 0x30})
	a.tickerBg.SetMinSize(fyne.NewSize(1, barHeight-6))
	center := container.NewStack(
		a.tickerBg,
		container.NewBorder(nil, nil, a.ind.CanvasObject(), nil, labelWrap),
	)

	a.volBtn = widget.NewButtonWithIcon("", theme.VolumeUpIcon(), a.toggleMute)
	a.volBtn.Importance = widget.LowImportance
	a.volSlider = ui.NewVolumeSlider(a.snap.Volume)
	a.volSlider.Step = VolumeStep
	a.volSlider.OnChanged = func(v int) {
		if !a.silentUpdating {
			a.ctrl.SetVolume(v)
		}
	}
	volume := container.NewHBox(
		a.volBtn,
		container.New(layout.NewGridWrapLayout(fyne.NewSize(90, a.volSlider.MinSize().Height)), a.volSlider),
	)

	return container.NewBorder(nil, nil, transport, volume, center)
}

func (a *App) buildBanner() fyne.CanvasObject {
	a.banner = widget.NewLabel("")
	a.banner.Wrapping = fyne.TextWrapWord
	dismiss := widget.NewButtonWithIcon("", theme.CancelIcon(), a.ctrl.DismissError)
	dismiss.Importance = widget.LowImportance
	a.bannerBox = container.NewBorder(nil, nil, nil, dismiss, a.banner)
	a.bannerBox.Hide()
	return a.bannerBox
}

func (a *App) buildFilter() fyne.CanvasObject {
	a.filter = widget.NewEntry()
	a.filter.SetPlaceHolder("Filter stations")
	a.filter.OnChanged = func(q string) {
		a.stations = a.ctrl.Catalog().Filter(q)
		a.list.UnselectAll()
		a.list.Refresh()
	}
	return a.filter
}

func (a *App) buildStationList() fyne.CanvasObject {
	a.list = widget.NewList(
		func() int { return len(a.stations) },
		func() fyne.CanvasObject {
			name := widget.NewLabel("station")
			name.Truncation = fyne.TextTruncateEllipsis
			marks := widget.NewLabel("")
			return container.NewBorder(nil, nil, nil, marks, name)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id < 0 || id >= len(a.stations) {
				return
			}
			st := a.stations[id]
			row := obj.(*fyne.Container)
			name := row.Objects[0].(*widget.Label)
			marks := row.Objects[1].(*widget.Label)
			name.TextStyle.Bold = a.snap.IsCurrent(st.ID)
			name.SetText(stationLabel(st, a.snap))
			marks.SetText(stationMarks(st.ID, a.snap))
		},
	)
	a.list.OnSelected = func(id widget.ListItemID) {
		if id >= 0 && id < len(a.stations) {
			a.ctrl.SelectStation(a.stations[id])
		}
		a.list.UnselectAll()
	}
	return a.list
}

func (a *App) buildFooter() fyne.CanvasObject {
	a.autoplay = widget.NewCheck("Play last station on start", func(on bool) {
		if !a.silentUpdating {
			a.ctrl.SetAutoplay(on)
		}
	})
	a.favBtn = widget.NewButton("☆", a.toggleCurrentFavorite)
	a.favBtn.Importance = widget.LowImportance
	return container.NewBorder(nil, nil, a.autoplay, a.favBtn)
}

// apply mirrors s into the widgets. Older snapshots are dropped.
func (a *App) apply(s session.Snapshot) {
	if s.Version < a.snap.Version {
		return
	}
	a.snap = s
	a.log.Debug("snapshot", "version", s.Version, "status", s.Status, "station", s.StationID())
	a.silentUpdating = true
	defer func() { a.silentUpdating = false }()

	if s.Status.IsActive() {
		a.playBtn.SetIcon(theme.MediaPauseIcon())
	} else {
		a.playBtn.SetIcon(theme.MediaPlayIcon())
	}
	if s.Station == nil {
		a.playBtn.Disable()
		a.favBtn.Disable()
	} else {
		a.playBtn.Enable()
		a.favBtn.Enable()
	}
	if s.Station != nil && s.IsFavorite(s.Station.ID) {
		a.favBtn.SetText("★")
	} else {
		a.favBtn.SetText("☆")
	}

	a.ind.SetStatus(s.Status)
	a.ticker.SetText(tickerText(s))

	a.volSlider.Sync(s.Volume)
	if s.Volume > 0 {
		a.lastVolume = s.Volume
		a.volBtn.SetIcon(theme.VolumeUpIcon())
	} else {
		a.volBtn.SetIcon(theme.VolumeMuteIcon())
	}

	if text, danger := bannerText(s); text != "" {
		a.banner.SetText(text)
		if danger {
			a.banner.Importance = widget.DangerImportance
		} else {
			a.banner.Importance = widget.WarningImportance
		}
		a.banner.Refresh()
		a.bannerBox.Show()
	} else {
		a.bannerBox.Hide()
	}

	a.autoplay.SetChecked(s.Autoplay)
	a.list.Refresh()

	title := windowTitle
	if s.Station != nil {
		title = windowTitle + " - " + s.Station.DisplayName()
	}
	a.w.SetTitle(title)
}

// handleShortcutKey serves the keyboard shortcuts of the window.
func (a *App) handleShortcutKey(ke *fyne.KeyEvent) {
	if ke == nil {
		return
	}
	switch ke.Name {
	case fyne.KeySpace:
		a.ctrl.TogglePlayPause()
	case fyne.KeyRight:
		a.ctrl.Next()
	case fyne.KeyLeft:
		a.ctrl.Previous()
	case fyne.KeyUp:
		a.ctrl.SetVolume(a.ctrl.Snapshot().Volume + VolumeStep)
	case fyne.KeyDown:
		a.ctrl.SetVolume(a.ctrl.Snapshot().Volume - VolumeStep)
	case fyne.KeyF:
		a.toggleCurrentFavorite()
	case fyne.KeyEscape:
		a.ctrl.DismissError()
	}
}

func (a *App) toggleCurrentFavorite() {
	if id := a.ctrl.Snapshot().StationID(); id != "" {
		a.ctrl.ToggleFavorite(id)
	}
}

// toggleMute drops the volume to zero, or restores the last audible level.
func (a *App) toggleMute() {
	if v := a.ctrl.Snapshot().Volume; v > 0 {
		a.lastVolume = v
		a.ctrl.SetVolume(0)
		return
	}
	a.ctrl.SetVolume(max(a.lastVolume, VolumeStep))
}

// tickerText is the one-line status shown next to the indicator.
func tickerText(s session.Snapshot) string {
	if s.Station == nil {
		return "Pick a station"
	}
	name := s.Station.DisplayName()
	switch s.Status {
	case session.Loading:
		if s.RetryCount > 0 {
			return fmt.Sprintf("Retrying %s (%d)…", name, s.RetryCount)
		}
		return "Connecting to " + name + "…"
	case session.Playing:
		if t := strings.TrimSpace(s.NowPlaying); t != "" {
			return t
		}
		return "Streaming " + name
	case session.Paused:
		return "Paused"
	case session.Error:
		return "Playback failed"
	default:
		return name
	}
}

// bannerText returns the banner line and whether it reports an error.
func bannerText(s session.Snapshot) (string, bool) {
	switch {
	case s.Message != "":
		return s.Message, true
	case s.Restored && s.Station != nil:
		return "Restored last station: " + s.Station.DisplayName(), false
	}
	return "", false
}

func stationLabel(st catalog.Station, s session.Snapshot) string {
	if !s.IsCurrent(st.ID) {
		return st.DisplayName()
	}
	switch s.Status {
	case session.Playing:
		return "▶ " + st.DisplayName()
	case session.Loading:
		return "… " + st.DisplayName()
	}
	return st.DisplayName()
}

func stationMarks(id string, s session.Snapshot) string {
	var marks []string
	if s.IsFavorite(id) {
		marks = append(marks, "★")
	}
	if s.HasError(id) {
		marks = append(marks, "⚠")
	}
	return strings.Join(marks, " ")
}
