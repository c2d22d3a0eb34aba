// Package metadata follows "now playing" titles of internet radio streams.
// Titles come from ICY blocks interleaved in the stream body when the server
// offers them, otherwise from the Icecast status-json.xsl endpoint on the
// stream's host.
package metadata

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultPollInterval is the status-json.xsl refresh period.
	DefaultPollInterval = 10 * time.Second
	// DefaultReconnectInterval bounds how often a dropped ICY connection is
	// reopened.
	DefaultReconnectInterval = 5 * time.Second

	userAgent    = "LofiRadio/1.0 (+https://local)"
	maxRedirects = 3
)

// Info is one metadata sample.
type Info struct {
	Title   string
	Station string
}

// Watcher reports titles for streams. A zero Watcher is not usable; call New.
type Watcher struct {
	client    *http.Client
	log       *log.Logger
	poll      time.Duration
	reconnect time.Duration
}

// Option customizes a Watcher.
type Option func(*Watcher)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.poll = d }
}

// WithReconnectInterval overrides DefaultReconnectInterval.
func WithReconnectInterval(d time.Duration) Option {
	return func(w *Watcher) { w.reconnect = d }
}

// New builds a Watcher. A nil client gets a transport tuned for ICY servers:
// no HTTP/2, short dial timeouts and redirects handled by the watcher so the
// Icy-MetaData header survives them.
func New(client *http.Client, logger *log.Logger, opts ...Option) *Watcher {
	if client == nil {
		client = newClient()
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &Watcher{
		client:    client,
		log:       logger,
		poll:      DefaultPollInterval,
		reconnect: DefaultReconnectInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func newClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			ForceAttemptHTTP2: false,
			Proxy:             http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   7 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 7 * time.Second,
			TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// Watch calls onTitle whenever the stream's title changes. It blocks until
// ctx is done or neither metadata source is available.
func (w *Watcher) Watch(ctx context.Context, streamURL string, onTitle func(string)) {
	if streamURL == "" || onTitle == nil {
		return
	}
	var last string
	emit := func(info Info) {
		if info.Title == "" || info.Title == last {
			return
		}
		last = info.Title
		onTitle(info.Title)
	}

	limiter := rate.NewLimiter(rate.Every(w.reconnect), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		err := w.followICY(ctx, streamURL, emit)
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, errNoICY) {
			w.log.Debug("no inline metadata, polling status endpoint", "url", streamURL)
			err = w.pollStatus(ctx, streamURL, emit)
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, errNoStatus) {
				w.log.Debug("no metadata source for stream", "url", streamURL)
				return
			}
		}
		w.log.Debug("metadata connection dropped", "url", streamURL, "err", err)
	}
}

// Probe describes the first metadata found for a stream.
type Probe struct {
	// Source is "icy" or "status-json".
	Source string
	// URL is the address the metadata came from after redirects.
	URL    string
	Header http.Header
	Info   Info
}

// Probe fetches one metadata sample. ICY streams are read until the first
// non-empty title or ctx ends.
func (w *Watcher) Probe(ctx context.Context, streamURL string) (Probe, error) {
	s, err := w.openICY(ctx, streamURL)
	if err == nil {
		defer s.Close()
		p := Probe{Source: "icy", URL: s.url, Header: s.header, Info: Info{Station: s.station}}
		for {
			title, err := s.Next()
			if err != nil {
				return p, err
			}
			if title != "" {
				p.Info.Title = title
				return p, nil
			}
		}
	}
	if !errors.Is(err, errNoICY) {
		return Probe{}, err
	}
	apiURL, err := statusURL(streamURL)
	if err != nil {
		return Probe{}, err
	}
	info, err := w.fetchStatus(ctx, apiURL)
	if err != nil {
		return Probe{}, err
	}
	return Probe{Source: "status-json", URL: apiURL, Info: info}, nil
}
