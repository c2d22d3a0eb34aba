package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fyne.io/fyne/v2"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/config"
	"github.com/edward-ap/lofiradio/internal/logging"
	"github.com/edward-ap/lofiradio/internal/metadata"
	"github.com/edward-ap/lofiradio/internal/player"
	"github.com/edward-ap/lofiradio/internal/prefs"
	"github.com/edward-ap/lofiradio/internal/session"
)

// ErrNoStation is returned when a command names a station the catalog lacks.
var ErrNoStation = errors.New("no such station")

// Runner holds the dependencies shared by the commands and provides one
// method per command action.
type Runner struct {
	cfg    *config.Config
	logger *log.Logger
	output io.Writer

	// newDevice builds the audio device; tests replace it.
	newDevice func() (session.Device, error)
	closers   []io.Closer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config *config.Config
	Logger *log.Logger
	Output io.Writer
	Device func() (session.Device, error)
}

// NewRunner creates a Runner. Setup replaces the configuration with the one
// named on the command line.
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.New(nil, opts.Config.Log.Level)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	r := &Runner{
		cfg:       opts.Config,
		logger:    opts.Logger,
		output:    opts.Output,
		newDevice: opts.Device,
	}
	if r.newDevice == nil {
		r.newDevice = r.openDevice
	}
	return r
}

// Setup loads the configuration and applies the global flags. It runs before
// every command.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if b := strings.TrimSpace(cmd.String("backend")); b != "" {
		cfg.Audio.Backend = strings.ToLower(b)
	}
	if l := strings.TrimSpace(cmd.String("log-level")); l != "" {
		cfg.Log.Level = strings.ToLower(l)
	}
	if err := cfg.Validate(); err != nil {
		return ctx, err
	}
	logging.SetTrace(cmd.Bool("trace"))
	r.cfg = cfg

	if path, _ := cfg.LogPath(false); path != "" {
		if err := r.logToFile(path); err != nil {
			return ctx, err
		}
	} else {
		r.logger.SetLevel(logging.ParseLevel(cfg.Log.Level))
	}
	return ctx, nil
}

// logToFile swaps the logger for one appending to path.
func (r *Runner) logToFile(path string) error {
	l, c, err := logging.NewFile(path, r.cfg.Log.Level)
	if err != nil {
		return err
	}
	r.logger = l
	r.closers = append(r.closers, c)
	return nil
}

// Close releases files opened by the commands.
func (r *Runner) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i].Close()
	}
	r.closers = nil
}

// openDevice builds the configured audio backend.
func (r *Runner) openDevice() (session.Device, error) {
	logger := logging.Component(r.logger, "player", "backend", r.cfg.Audio.Backend)
	switch r.cfg.Audio.Backend {
	case player.BackendBeep:
		return player.NewBeep(player.BeepOptions{
			Logger:      logger,
			PlayTimeout: r.cfg.Audio.PlayTimeout(),
		}), nil
	default:
		v, err := player.NewVLC(player.VLCOptions{
			Logger:         logger,
			NetworkCaching: r.cfg.Audio.NetworkCachingMS,
			PlayTimeout:    r.cfg.Audio.PlayTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// openStore opens the configured preference backend. "auto" uses the fyne
// preferences inside the desktop window and the JSON file elsewhere.
func (r *Runner) openStore(fa fyne.App) (prefs.Store, error) {
	backend := r.cfg.Preferences.Backend
	if backend == config.PrefsAuto {
		backend = config.PrefsFile
		if fa != nil {
			return prefs.NewFyneStore(fa.Preferences()), nil
		}
	}
	if backend == config.PrefsMemory {
		return prefs.NewMemoryStore(), nil
	}

	path, err := r.cfg.PreferencesPath(backend)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create preferences directory: %w", err)
	}
	if backend == config.PrefsSQLite {
		return prefs.OpenSQLite(path)
	}
	s, err := prefs.OpenFile(path)
	if err != nil && s != nil {
		r.logger.Warn("preferences reset", "path", path, "err", err)
		return s, nil
	}
	return s, err
}

// loadCatalog reads the configured station list, or the built-in one.
func (r *Runner) loadCatalog() (*catalog.Catalog, error) {
	if p := strings.TrimSpace(r.cfg.Catalog.Path); p != "" {
		return catalog.Load(p)
	}
	return catalog.Default(), nil
}

// resolveStation accepts a station id, or a stream URL from the catalog.
func resolveStation(cat *catalog.Catalog, ref string) (catalog.Station, bool) {
	ref = strings.TrimSpace(ref)
	if st, ok := cat.ByID(ref); ok {
		return st, true
	}
	want := catalog.NormalizeStreamURL(ref)
	for _, st := range cat.All() {
		if catalog.NormalizeStreamURL(st.StreamURL) == want {
			return st, true
		}
	}
	return catalog.Station{}, false
}

// sessionDeps are the pieces a controller is built from; close tears them
// down in reverse order.
type sessionDeps struct {
	ctrl  *session.Controller
	prefs *prefs.Preferences
	store prefs.Store
}

func (d *sessionDeps) close() {
	d.ctrl.Close()
	d.prefs.Close()
	_ = d.store.Close()
}

// newSession wires catalog, preferences, device and metadata into a
// controller. fa selects the fyne preference store in "auto" mode.
func (r *Runner) newSession(fa fyne.App) (*sessionDeps, error) {
	cat, err := r.loadCatalog()
	if err != nil {
		return nil, err
	}
	store, err := r.openStore(fa)
	if err != nil {
		return nil, err
	}
	p := prefs.Load(store, logging.Component(r.logger, "prefs"))

	dev, err := r.newDevice()
	if err != nil {
		p.Close()
		_ = store.Close()
		return nil, err
	}

	opts := session.Options{
		Catalog:     cat,
		Device:      dev,
		Preferences: p,
		Logger:      logging.Component(r.logger, "session"),
	}
	if r.cfg.Metadata.Enabled {
		opts.Titles = metadata.New(nil, logging.Component(r.logger, "metadata"),
			metadata.WithPollInterval(r.cfg.Metadata.PollInterval()))
	}
	ctrl, err := session.New(opts)
	if err != nil {
		dev.Release()
		p.Close()
		_ = store.Close()
		return nil, err
	}
	return &sessionDeps{ctrl: ctrl, prefs: p, store: store}, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error
	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	output = append(output, '\n')
	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
