package metadata

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

var errNoICY = errors.New("metadata: stream carries no ICY metadata")

// icyStream is an open stream whose body interleaves audio and ICY blocks.
type icyStream struct {
	body    io.ReadCloser
	r       *bufio.Reader
	metaInt int
	url     string
	header  http.Header
	station string
}

// openICY requests streamURL with Icy-MetaData enabled, following redirects
// by hand so every hop carries the header.
func (w *Watcher) openICY(ctx context.Context, streamURL string) (*icyStream, error) {
	target := streamURL
	for hop := 0; ; hop++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Icy-MetaData", "1")
		req.Header.Set("User-Agent", userAgent)

		resp, err := w.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			resp.Body.Close()
			loc, err := resp.Location()
			if err != nil {
				return nil, fmt.Errorf("metadata: redirect from %s: %w", target, err)
			}
			if hop == maxRedirects {
				return nil, fmt.Errorf("metadata: too many redirects from %s", streamURL)
			}
			target = loc.String()
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("metadata: %s: %s", target, resp.Status)
		}

		metaInt, err := strconv.Atoi(strings.TrimSpace(resp.Header.Get("icy-metaint")))
		if err != nil || metaInt <= 0 {
			resp.Body.Close()
			return nil, errNoICY
		}
		return &icyStream{
			body:    resp.Body,
			r:       bufio.NewReader(resp.Body),
			metaInt: metaInt,
			url:     target,
			header:  resp.Header,
			station: html.UnescapeString(strings.TrimSpace(resp.Header.Get("icy-name"))),
		}, nil
	}
}

// Next skips one audio chunk and returns the title of the metadata block
// that follows it, or "" when the block is empty.
func (s *icyStream) Next() (string, error) {
	if _, err := io.CopyN(io.Discard, s.r, int64(s.metaInt)); err != nil {
		return "", err
	}
	n, err := s.r.ReadByte()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	block := make([]byte, int(n)*16)
	if _, err := io.ReadFull(s.r, block); err != nil {
		return "", err
	}
	return ExtractStreamTitle(string(block)), nil
}

func (s *icyStream) Close() error { return s.body.Close() }

// followICY streams titles until the connection ends.
func (w *Watcher) followICY(ctx context.Context, streamURL string, emit func(Info)) error {
	s, err := w.openICY(ctx, streamURL)
	if err != nil {
		return err
	}
	defer s.Close()
	w.log.Debug("following ICY metadata", "url", s.url, "metaint", s.metaInt, "station", s.station)
	for {
		title, err := s.Next()
		if err != nil {
			return err
		}
		emit(Info{Title: title, Station: s.station})
	}
}

// ExtractStreamTitle returns the StreamTitle value of an ICY metadata block.
// Titles may contain the quote character itself, so a quote only terminates
// the value when it is followed by the end of the block or by "; key=".
func ExtractStreamTitle(block string) string {
	block = strings.TrimRight(block, "\x00")
	i := strings.Index(block, "StreamTitle=")
	if i < 0 {
		return ""
	}
	v := strings.TrimSpace(block[i+len("StreamTitle="):])
	if v == "" {
		return ""
	}

	if q := v[0]; q == '\'' || q == '"' {
		v = v[1:]
		end := -1
		for j := 0; j < len(v) && end < 0; j++ {
			if v[j] != q {
				continue
			}
			rest := strings.TrimLeft(v[j+1:], " \t")
			if rest == "" || (rest[0] == ';' && (strings.TrimSpace(rest[1:]) == "" || strings.Contains(rest[1:], "="))) {
				end = j
			}
		}
		if end < 0 {
			end = strings.LastIndexByte(v, q)
		}
		if end >= 0 {
			v = v[:end]
		}
	} else if j := strings.IndexByte(v, ';'); j >= 0 {
		v = v[:j]
	}
	return html.UnescapeString(strings.TrimSpace(v))
}

// hostOf is used in log lines.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
