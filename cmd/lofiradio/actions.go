package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fyne.io/fyne/v2/app"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/urfave/cli/v3"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/config"
	"github.com/edward-ap/lofiradio/internal/logging"
	"github.com/edward-ap/lofiradio/internal/metadata"
	"github.com/edward-ap/lofiradio/internal/prefs"
	"github.com/edward-ap/lofiradio/internal/radioapp"
	"github.com/edward-ap/lofiradio/internal/session"
	"github.com/edward-ap/lofiradio/internal/tui"
)

const defaultPeekTimeout = 15 * time.Second

// ErrPlaybackFailed is returned by play when the station gave up.
var ErrPlaybackFailed = errors.New("playback failed")

// GUI opens the desktop window and blocks until it is closed.
func (r *Runner) GUI(ctx context.Context, cmd *cli.Command) error {
	fa := app.NewWithID(config.AppID)
	deps, err := r.newSession(fa)
	if err != nil {
		return err
	}
	defer deps.close()

	w := radioapp.New(fa, deps.ctrl, r.logger)
	deps.ctrl.Restore()
	w.Run()
	return nil
}

// TUI runs the terminal player. Logs go to a file so they do not corrupt the
// screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	path, err := r.cfg.LogPath(true)
	if err != nil {
		return err
	}
	if err := r.logToFile(path); err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}

	deps, err := r.newSession(nil)
	if err != nil {
		return err
	}
	defer deps.close()

	model := tui.New(deps.ctrl)
	defer model.Close()
	deps.ctrl.Restore()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// Play streams a station headless, printing status changes until interrupted
// or until the station gives up. Without an argument the last station plays.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := r.newSession(nil)
	if err != nil {
		return err
	}
	defer deps.close()

	st, err := pickStation(deps.ctrl.Catalog(), cmd.StringArg("station"), deps.prefs.LastStation())
	if err != nil {
		return err
	}

	failed := make(chan string, 1)
	rep := &reporter{r: r}
	cancel := deps.ctrl.Subscribe(func(s session.Snapshot) {
		rep.report(s)
		if s.Status == session.Error {
			select {
			case failed <- s.Message:
			default:
			}
		}
	})
	defer cancel()

	deps.ctrl.SelectStation(st)
	select {
	case <-ctx.Done():
		return nil
	case msg := <-failed:
		return fmt.Errorf("%w: %s", ErrPlaybackFailed, msg)
	}
}

// pickStation resolves ref, or falls back to the last station and then the
// first catalog entry.
func pickStation(cat *catalog.Catalog, ref, last string) (catalog.Station, error) {
	if strings.TrimSpace(ref) != "" {
		st, ok := resolveStation(cat, ref)
		if !ok {
			return catalog.Station{}, fmt.Errorf("%w: %s", ErrNoStation, ref)
		}
		return st, nil
	}
	if st, ok := cat.ByID(last); ok {
		return st, nil
	}
	if st, ok := cat.At(0); ok {
		return st, nil
	}
	return catalog.Station{}, catalog.ErrEmptyCatalog
}

// reporter prints the parts of a snapshot that changed. The controller
// delivers snapshots one at a time, so it needs no locking.
type reporter struct {
	r      *Runner
	status session.Status
	title  string
	msg    string
}

func (p *reporter) report(s session.Snapshot) {
	name := ""
	if s.Station != nil {
		name = s.Station.DisplayName()
	}
	if s.Status != p.status {
		p.status = s.Status
		switch {
		case s.Status == session.Loading && s.RetryCount > 0:
			_ = p.r.writePlain("%-8s %s (retry %d)\n", s.Status, name, s.RetryCount)
		default:
			_ = p.r.writePlain("%-8s %s\n", s.Status, name)
		}
	}
	if s.NowPlaying != p.title {
		p.title = s.NowPlaying
		if s.NowPlaying != "" {
			_ = p.r.writePlain("♪ %s\n", s.NowPlaying)
		}
	}
	if s.Message != p.msg {
		p.msg = s.Message
		if s.Message != "" {
			_ = p.r.writePlain("! %s\n", s.Message)
		}
	}
}

type stationView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	StreamURL   string `json:"stream_url"`
	Description string `json:"description,omitempty"`
	Favorite    bool   `json:"favorite"`
	Last        bool   `json:"last"`
}

// Stations prints the catalog with favorite and last-played markers.
func (r *Runner) Stations(ctx context.Context, cmd *cli.Command) error {
	cat, err := r.loadCatalog()
	if err != nil {
		return err
	}
	p, done, err := r.openPreferences()
	if err != nil {
		return err
	}
	defer done()

	var views []stationView
	for _, st := range cat.Filter(cmd.String("filter")) {
		v := stationView{
			ID:          st.ID,
			Name:        st.DisplayName(),
			StreamURL:   st.StreamURL,
			Description: st.Description,
			Favorite:    p.IsFavorite(st.ID),
			Last:        p.LastStation() == st.ID,
		}
		if cmd.Bool("favorites") && !v.Favorite {
			continue
		}
		views = append(views, v)
	}

	if cmd.Bool("json") {
		if views == nil {
			views = []stationView{}
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}
	if len(views) == 0 {
		return r.writePlain("no stations\n")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("", "ID", "NAME", "DESCRIPTION")
	for _, v := range views {
		mark := ""
		if v.Favorite {
			mark += "★"
		}
		if v.Last {
			mark += "▶"
		}
		t.Row(mark, v.ID, v.Name, v.Description)
	}
	return r.writePlain("%s\n", t.Render())
}

type peekView struct {
	Source  string              `json:"source"`
	URL     string              `json:"url"`
	Station string              `json:"station,omitempty"`
	Title   string              `json:"title,omitempty"`
	Headers map[string][]string `json:"headers,omitempty"`
}

// Peek fetches one now-playing sample for a station id or stream URL.
func (r *Runner) Peek(ctx context.Context, cmd *cli.Command) error {
	target := strings.TrimSpace(cmd.StringArg("target"))
	if target == "" {
		return errors.New("peek: a station id or stream URL is required")
	}
	streamURL := target
	if cat, err := r.loadCatalog(); err == nil {
		if st, ok := resolveStation(cat, target); ok {
			streamURL = catalog.NormalizeStreamURL(st.StreamURL)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	w := metadata.New(nil, logging.Component(r.logger, "metadata"))
	p, err := w.Probe(ctx, streamURL)
	if err != nil {
		return fmt.Errorf("peek %s: %w", streamURL, err)
	}

	view := peekView{Source: p.Source, URL: p.URL, Station: p.Info.Station, Title: p.Info.Title}
	if cmd.Bool("headers") || cmd.Bool("json") {
		view.Headers = p.Header
	}
	if cmd.Bool("json") {
		return r.writeJSON(view, true)
	}

	_ = r.writePlain("source:  %s\nurl:     %s\n", view.Source, view.URL)
	if view.Station != "" {
		_ = r.writePlain("station: %s\n", view.Station)
	}
	if view.Title == "" {
		_ = r.writePlain("title:   (none)\n")
	} else {
		_ = r.writePlain("title:   %s\n", view.Title)
	}
	if cmd.Bool("headers") && len(view.Headers) > 0 {
		keys := make([]string, 0, len(view.Headers))
		for k := range view.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		_ = r.writePlain("=== Response Headers ===\n")
		for _, k := range keys {
			_ = r.writePlain("%s: %s\n", k, strings.Join(view.Headers[k], ", "))
		}
	}
	return nil
}

// openPreferences opens the preference store outside the desktop window.
func (r *Runner) openPreferences() (*prefs.Preferences, func(), error) {
	store, err := r.openStore(nil)
	if err != nil {
		return nil, nil, err
	}
	p := prefs.Load(store, logging.Component(r.logger, "prefs"))
	return p, func() {
		p.Close()
		_ = store.Close()
	}, nil
}

// PrefsShow prints the stored preferences.
func (r *Runner) PrefsShow(ctx context.Context, cmd *cli.Command) error {
	p, done, err := r.openPreferences()
	if err != nil {
		return err
	}
	defer done()

	last := p.LastStation()
	if last == "" {
		last = "(none)"
	}
	favs := strings.Join(p.Favorites(), ", ")
	if favs == "" {
		favs = "(none)"
	}
	return r.writePlain("backend:      %s\nvolume:       %d\nautoplay:     %t\nlast station: %s\nfavorites:    %s\n",
		r.cfg.Preferences.Backend, p.Volume(), p.Autoplay(), last, favs)
}

// PrefsVolume stores the volume.
func (r *Runner) PrefsVolume(ctx context.Context, cmd *cli.Command) error {
	v, err := strconv.Atoi(strings.TrimSpace(cmd.StringArg("level")))
	if err != nil || v < 0 || v > 100 {
		return fmt.Errorf("volume must be a number between 0 and 100, got %q", cmd.StringArg("level"))
	}
	p, done, err := r.openPreferences()
	if err != nil {
		return err
	}
	defer done()
	p.SetVolume(v)
	return r.writePlain("volume: %d\n", p.Volume())
}

// PrefsAutoplay turns autoplay of the last station on or off.
func (r *Runner) PrefsAutoplay(ctx context.Context, cmd *cli.Command) error {
	on, err := parseSwitch(cmd.StringArg("state"))
	if err != nil {
		return err
	}
	p, done, err := r.openPreferences()
	if err != nil {
		return err
	}
	defer done()
	p.SetAutoplay(on)
	return r.writePlain("autoplay: %t\n", p.Autoplay())
}

// PrefsFavorite toggles a catalog station in the favorites.
func (r *Runner) PrefsFavorite(ctx context.Context, cmd *cli.Command) error {
	cat, err := r.loadCatalog()
	if err != nil {
		return err
	}
	ref := cmd.StringArg("station")
	st, ok := resolveStation(cat, ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoStation, ref)
	}
	p, done, err := r.openPreferences()
	if err != nil {
		return err
	}
	defer done()
	if p.ToggleFavorite(st.ID) {
		return r.writePlain("added %s to favorites\n", st.DisplayName())
	}
	return r.writePlain("removed %s from favorites\n", st.DisplayName())
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
	return b, nil
}
