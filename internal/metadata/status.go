package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var errNoStatus = errors.New("metadata: status endpoint unavailable")

const statusTimeout = 2 * time.Second

// pollStatus emits the status-json.xsl title every poll interval. It returns
// errNoStatus when the first poll fails.
func (w *Watcher) pollStatus(ctx context.Context, streamURL string, emit func(Info)) error {
	apiURL, err := statusURL(streamURL)
	if err != nil {
		return errors.Join(errNoStatus, err)
	}
	info, err := w.fetchStatus(ctx, apiURL)
	if err != nil {
		return errors.Join(errNoStatus, err)
	}
	emit(info)
	w.log.Debug("polling status endpoint", "host", hostOf(apiURL), "every", w.poll)

	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			info, err := w.fetchStatus(ctx, apiURL)
			if err != nil {
				w.log.Debug("status poll failed", "url", apiURL, "err", err)
				continue
			}
			emit(info)
		}
	}
}

// statusURL maps a mount ("/live/lofi") to the status document next to it
// ("/live/status-json.xsl").
func statusURL(streamURL string) (string, error) {
	u, err := url.Parse(streamURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("metadata: %q has no host", streamURL)
	}
	u.Path = path.Join("/", path.Dir(u.Path), "status-json.xsl")
	u.RawQuery = ""
	return u.String(), nil
}

type iceStats struct {
	IceStats struct {
		Source json.RawMessage `json:"source"`
	} `json:"icestats"`
}

type iceSource struct {
	Title      string `json:"title"`
	ServerName string `json:"server_name"`
	IcyName    string `json:"icy-name"`
}

func (w *Watcher) fetchStatus(ctx context.Context, apiURL string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return Info{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := w.client.Do(req)
	if err != nil {
		return Info{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Info{}, fmt.Errorf("metadata: %s: %s", apiURL, resp.Status)
	}

	var st iceStats
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&st); err != nil {
		return Info{}, fmt.Errorf("metadata: decode %s: %w", apiURL, err)
	}
	sources, err := decodeSources(st.IceStats.Source)
	if err != nil {
		return Info{}, fmt.Errorf("metadata: decode %s: %w", apiURL, err)
	}
	for _, src := range sources {
		if title := strings.TrimSpace(src.Title); title != "" {
			station := strings.TrimSpace(src.ServerName)
			if station == "" {
				station = strings.TrimSpace(src.IcyName)
			}
			return Info{Title: title, Station: station}, nil
		}
	}
	return Info{}, fmt.Errorf("metadata: %s lists no titled source", apiURL)
}

// decodeSources accepts Icecast's "source" as a single object (one mount) or
// an array (several mounts).
func decodeSources(raw json.RawMessage) ([]iceSource, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var many []iceSource
		err := json.Unmarshal(raw, &many)
		return many, err
	}
	var one iceSource
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, err
	}
	return []iceSource{one}, nil
}
