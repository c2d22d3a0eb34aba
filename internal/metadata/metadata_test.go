package metadata

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edward-ap/lofiradio/internal/logging"
)

func TestExtractStreamTitle(t *testing.T) {
	tests := []struct {
		name  string
		block string
		want  string
	}{
		{"single quotes", "StreamTitle='Artist - Track';", "Artist - Track"},
		{"quoted apostrophe", "StreamTitle='JANE'S ADDICTION - BEEN CAUGHT STEALING';", "JANE'S ADDICTION - BEEN CAUGHT STEALING"},
		{"double quotes", `StreamTitle="Double Quoted Title";`, "Double Quoted Title"},
		{"followed by url", "StreamTitle='Song';StreamUrl='http://x';", "Song"},
		{"missing terminator", "StreamTitle='No Terminator", "No Terminator"},
		{"unquoted", "StreamTitle=Plain;", "Plain"},
		{"nul padding", "StreamTitle='Padded';\x00\x00\x00", "Padded"},
		{"spaces and entities", "StreamTitle=' AC/DC &amp; Friends ';", "AC/DC & Friends"},
		{"empty", "StreamTitle='';", ""},
		{"absent", "StreamUrl='http://example'", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractStreamTitle(tt.block); got != tt.want {
				t.Fatalf("ExtractStreamTitle(%q) = %q, want %q", tt.block, got, tt.want)
			}
		})
	}
}

func TestStatusURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://radio.example/live/lofi", "https://radio.example/live/status-json.xsl"},
		{"https://radio.example/lofi.mp3?token=1", "https://radio.example/status-json.xsl"},
		{"http://radio.example:8000/stream", "http://radio.example:8000/status-json.xsl"},
	}
	for _, tt := range tests {
		got, err := statusURL(tt.in)
		if err != nil {
			t.Fatalf("statusURL(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("statusURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := statusURL("/relative"); err == nil {
		t.Fatal("expected error for url without host")
	}
}

// icyBody encodes titles with a metaint of 1: one audio byte per block.
func icyBody(titles ...string) []byte {
	var buf bytes.Buffer
	for _, title := range titles {
		buf.WriteByte(0)
		meta := fmt.Sprintf("StreamTitle='%s';", title)
		for len(meta)%16 != 0 {
			meta += "\x00"
		}
		buf.WriteByte(byte(len(meta) / 16))
		buf.WriteString(meta)
	}
	return buf.Bytes()
}

func serveICY(w http.ResponseWriter, station string, titles ...string) {
	w.Header().Set("icy-metaint", "1")
	w.Header().Set("icy-name", station)
	w.Write(icyBody(titles...))
}

func newTestWatcher(srv *httptest.Server) *Watcher {
	return New(srv.Client(), logging.Discard(),
		WithPollInterval(20*time.Millisecond),
		WithReconnectInterval(10*time.Millisecond))
}

// collect runs Watch until n titles arrived.
func collect(t *testing.T, w *Watcher, url string, n int) []string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	titles := make(chan string, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Watch(ctx, url, func(title string) { titles <- title })
	}()

	var got []string
	for len(got) < n {
		select {
		case title := <-titles:
			got = append(got, title)
		case <-ctx.Done():
			t.Fatalf("got %v before timeout, want %d titles", got, n)
		}
	}
	cancel()
	<-done
	return got
}

func TestWatchICY(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			t.Errorf("Icy-MetaData header missing")
		}
		serveICY(w, "Lofi FM", "A - One", "A - One", "B - Two")
	}))
	defer srv.Close()

	got := collect(t, newTestWatcher(srv), srv.URL+"/stream", 2)
	if want := []string{"A - One", "B - Two"}; !slices.Equal(got, want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}
}

func TestWatchReconnects(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		serveICY(w, "Lofi FM", fmt.Sprintf("Hit %d", n))
	}))
	defer srv.Close()

	got := collect(t, newTestWatcher(srv), srv.URL+"/stream", 2)
	if want := []string{"Hit 1", "Hit 2"}; !slices.Equal(got, want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}
}

func TestWatchFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Icy-MetaData") != "1" {
			http.Error(w, "no icy", http.StatusBadRequest)
			return
		}
		serveICY(w, "Moved", "After Redirect")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	w := New(nil, logging.Discard(), WithReconnectInterval(10*time.Millisecond))
	got := collect(t, w, srv.URL+"/old", 1)
	if got[0] != "After Redirect" {
		t.Fatalf("title = %q", got[0])
	}
}

func TestWatchFallsBackToStatusJSON(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/live/lofi", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "audio without metadata")
	})
	mux.HandleFunc("/live/status-json.xsl", func(w http.ResponseWriter, r *http.Request) {
		n := polls.Add(1)
		fmt.Fprintf(w, `{"icestats":{"source":[{"title":""},{"title":"Poll %d","server_name":"Station"}]}}`, min(n, 2))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	got := collect(t, newTestWatcher(srv), srv.URL+"/live/lofi", 2)
	if want := []string{"Poll 1", "Poll 2"}; !slices.Equal(got, want) {
		t.Fatalf("titles = %v, want %v", got, want)
	}
}

func TestWatchGivesUpWithoutSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "plain audio")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestWatcher(srv).Watch(context.Background(), srv.URL+"/stream", func(string) {
			t.Error("unexpected title")
		})
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return")
	}
}

func TestFetchStatusErrors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"not found", func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) }},
		{"broken json", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "{broken") }},
		{"no titles", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"icestats":{"source":{"title":"  "}}}`)
		}},
		{"no sources", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, `{"icestats":{}}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.h)
			defer srv.Close()
			if _, err := newTestWatcher(srv).fetchStatus(context.Background(), srv.URL+"/status-json.xsl"); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestProbe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/icy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("icy-metaint", "1")
		w.Header().Set("icy-name", "Chill &amp; Co")
		body := []byte{0, 0} // one empty block first
		w.Write(append(body, icyBody("First Song")...))
	})
	mux.HandleFunc("/json/stream", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "audio")
	})
	mux.HandleFunc("/json/status-json.xsl", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"icestats":{"source":{"title":"Json Song","icy-name":"Json FM"}}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	w := newTestWatcher(srv)

	p, err := w.Probe(context.Background(), srv.URL+"/icy")
	if err != nil {
		t.Fatalf("Probe(icy): %v", err)
	}
	if p.Source != "icy" || p.Info.Title != "First Song" || p.Info.Station != "Chill & Co" {
		t.Fatalf("Probe(icy) = %+v", p)
	}
	if p.Header.Get("icy-metaint") != "1" {
		t.Fatalf("headers not reported: %v", p.Header)
	}

	p, err = w.Probe(context.Background(), srv.URL+"/json/stream")
	if err != nil {
		t.Fatalf("Probe(json): %v", err)
	}
	if p.Source != "status-json" || p.Info.Title != "Json Song" || p.Info.Station != "Json FM" {
		t.Fatalf("Probe(json) = %+v", p)
	}
}
