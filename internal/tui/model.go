// Package tui is a terminal front end for a playback session.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/session"
)

// VolumeStep is the change applied by the louder and quieter keys.
const VolumeStep = 5

// Player is the part of [session.Controller] the terminal UI drives.
type Player interface {
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

var _ Player = (*session.Controller)(nil)

// snapshotMsg carries the newest session state into Update.
type snapshotMsg session.Snapshot

// Model is the bubbletea model of the player screen.
type Model struct {
	player  Player
	list    list.Model
	help    help.Model
	keys    keyMap
	snap    session.Snapshot
	changed chan struct{}
	cancel  func()
	width   int
}

// New subscribes to p and returns a model showing its stations.
func New(p Player) *Model {
	m := &Model{
		player:  p,
		help:    help.New(),
		keys:    newKeyMap(),
		snap:    p.Snapshot(),
		changed: make(chan struct{}, 1),
	}
	m.list = list.New(stationItems(p.Catalog().All(), m.snap), list.NewDefaultDelegate(), 0, 0)
	m.list.Title = "LofiRadio"
	m.list.Styles.Title = m.list.Styles.Title.Background(styles.title.GetForeground())
	m.list.SetShowHelp(false)
	m.list.SetStatusBarItemName("station", "stations")
	if i := p.Catalog().IndexOf(m.snap.StationID()); i >= 0 {
		m.list.Select(i)
	}
	// The subscriber only signals; Update reads the snapshot itself so a
	// slow terminal coalesces bursts of changes.
	m.cancel = p.Subscribe(func(session.Snapshot) {
		select {
		case m.changed <- struct{}{}:
		default:
		}
	})
	return m
}

// Close stops listening to the session.
func (m *Model) Close() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Model) waitForChange() tea.Msg {
	<-m.changed
	return snapshotMsg(m.player.Snapshot())
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return m.waitForChange }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.list.SetSize(msg.Width, max(msg.Height-headerLines-2, 4))
		return m, nil

	case snapshotMsg:
		s := session.Snapshot(msg)
		if s.Version < m.snap.Version {
			return m, m.waitForChange
		}
		m.snap = s
		cmd := m.list.SetItems(stationItems(m.player.Catalog().All(), s))
		return m, tea.Batch(cmd, m.waitForChange)

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		if cmd, ok := m.handleKey(msg); ok {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return tea.Quit, true
	case key.Matches(msg, m.keys.play):
		if st, ok := m.highlighted(); ok {
			m.player.SelectStation(st)
		}
	case key.Matches(msg, m.keys.toggle):
		m.player.TogglePlayPause()
	case key.Matches(msg, m.keys.next):
		m.player.Next()
	case key.Matches(msg, m.keys.prev):
		m.player.Previous()
	case key.Matches(msg, m.keys.louder):
		m.player.SetVolume(m.player.Snapshot().Volume + VolumeStep)
	case key.Matches(msg, m.keys.quieter):
		m.player.SetVolume(m.player.Snapshot().Volume - VolumeStep)
	case key.Matches(msg, m.keys.favorite):
		if st, ok := m.highlighted(); ok {
			m.player.ToggleFavorite(st.ID)
		}
	case key.Matches(msg, m.keys.autoplay):
		m.player.SetAutoplay(!m.player.Snapshot().Autoplay)
	case key.Matches(msg, m.keys.dismiss):
		m.player.DismissError()
	default:
		return nil, false
	}
	return nil, true
}

func (m *Model) highlighted() (catalog.Station, bool) {
	it, ok := m.list.SelectedItem().(stationItem)
	if !ok {
		return catalog.Station{}, false
	}
	return it.station, true
}

// headerLines is the height of the status block above the list.
const headerLines = 3

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.statusLine())
	b.WriteByte('\n')
	b.WriteString(m.detailLine())
	b.WriteByte('\n')
	b.WriteString(m.bannerLine())
	b.WriteByte('\n')
	b.WriteString(m.list.View())
	b.WriteByte('\n')
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) statusLine() string {
	s := m.snap
	name := "No station"
	if s.Station != nil {
		name = s.Station.DisplayName()
	}
	var state string
	switch s.Status {
	case session.Playing:
		state = styles.playing.Render("playing")
	case session.Loading:
		state = styles.notice.Render("loading")
		if s.RetryCount > 0 {
			state = styles.notice.Render(fmt.Sprintf("retrying (%d)", s.RetryCount))
		}
	case session.Error:
		state = styles.err.Render("error")
	default:
		state = styles.muted.Render(s.Status.String())
	}
	return fmt.Sprintf("%s  %s  vol %d%%", styles.title.Render(name), state, s.Volume)
}

func (m *Model) detailLine() string {
	s := m.snap
	auto := "off"
	if s.Autoplay {
		auto = "on"
	}
	line := "autoplay " + auto
	if s.NowPlaying != "" {
		line = "♪ " + s.NowPlaying + "  ·  " + line
	}
	return styles.muted.Render(line)
}

func (m *Model) bannerLine() string {
	switch {
	case m.snap.Message != "":
		return styles.err.Render(m.snap.Message)
	case m.snap.Restored && m.snap.Station != nil:
		return styles.notice.Render("Restored last station: " + m.snap.Station.DisplayName())
	}
	return ""
}
