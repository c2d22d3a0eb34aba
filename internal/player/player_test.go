package player

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	vlc "github.com/adrg/libvlc-go/v3"

	"github.com/edward-ap/lofiradio/internal/logging"
	"github.com/edward-ap/lofiradio/internal/session"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: " https://radio.example/lofi \r\n", want: "https://radio.example/lofi"},
		{in: "http://radio.example:8000/stream", want: "http://radio.example:8000/stream"},
		{in: "", wantErr: true},
		{in: "ftp://radio.example/lofi", wantErr: true},
		{in: "https:///nohost", wantErr: true},
		{in: "radio.example/lofi", wantErr: true},
	}
	for _, tt := range tests {
		got, err := sanitizeURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("sanitizeURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Fatalf("sanitizeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGainExponent(t *testing.T) {
	if got := gainExponent(100); got != 0 {
		t.Fatalf("gainExponent(100) = %v, want 0", got)
	}
	if got := gainExponent(150); got != 0 {
		t.Fatalf("gainExponent(150) = %v, want 0", got)
	}
	prev := gainExponent(0)
	for v := 1; v <= 100; v++ {
		got := gainExponent(v)
		if got < prev {
			t.Fatalf("gainExponent not monotonic at %d: %v < %v", v, got, prev)
		}
		prev = got
	}
}

func TestDispatcherKeepsOrder(t *testing.T) {
	d := newDispatcher()
	defer d.close()

	got := make(chan session.EventKind, 3)
	d.setHandler(func(ev session.Event) { got <- ev.Kind })
	for _, k := range []session.EventKind{session.EventLoading, session.EventReady, session.EventError} {
		d.post(session.Event{Kind: k})
	}
	for _, want := range []session.EventKind{session.EventLoading, session.EventReady, session.EventError} {
		select {
		case k := <-got:
			if k != want {
				t.Fatalf("event = %v, want %v", k, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}

	d.close()
	d.post(session.Event{Kind: session.EventReady}) // must not block or panic
}

func newTestBeep(srv *httptest.Server) *Beep {
	b := NewBeep(BeepOptions{
		Logger:      logging.Discard(),
		Client:      srv.Client(),
		PlayTimeout: time.Second,
	})
	return b
}

func TestBeepPlayWithoutSource(t *testing.T) {
	b := NewBeep(BeepOptions{Logger: logging.Discard()})
	defer b.Release()
	if err := b.Play(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Fatalf("Play() = %v, want ErrNoSource", err)
	}
	if err := b.SetSource("not a url"); err == nil {
		t.Fatal("SetSource accepted an invalid url")
	}
}

func TestBeepPlayFailures(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/missing", http.NotFound)
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("not an mp3 frame ", 64))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	t.Run("http status", func(t *testing.T) {
		b := newTestBeep(srv)
		defer b.Release()
		if err := b.SetSource(srv.URL + "/missing"); err != nil {
			t.Fatal(err)
		}
		if err := b.Play(context.Background()); err == nil || !strings.Contains(err.Error(), "404") {
			t.Fatalf("Play() = %v, want 404 error", err)
		}
	})
	t.Run("decode", func(t *testing.T) {
		b := newTestBeep(srv)
		defer b.Release()
		_ = b.SetSource(srv.URL + "/garbage")
		if err := b.Play(context.Background()); err == nil {
			t.Fatal("Play() decoded garbage")
		}
	})
	t.Run("timeout", func(t *testing.T) {
		b := newTestBeep(srv)
		defer b.Release()
		b.timeout = 50 * time.Millisecond
		_ = b.SetSource(srv.URL + "/slow")
		if err := b.Play(context.Background()); !errors.Is(err, ErrPlayTimeout) {
			t.Fatalf("Play() = %v, want ErrPlayTimeout", err)
		}
	})
	t.Run("cancelled", func(t *testing.T) {
		b := newTestBeep(srv)
		defer b.Release()
		_ = b.SetSource(srv.URL + "/slow")
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		if err := b.Play(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Play() = %v, want deadline exceeded", err)
		}
	})
}

func TestBeepReleased(t *testing.T) {
	b := NewBeep(BeepOptions{Logger: logging.Discard()})
	b.Release()
	b.Release()
	if err := b.SetSource("https://radio.example/lofi"); !errors.Is(err, ErrReleased) {
		t.Fatalf("SetSource after Release = %v", err)
	}
	if err := b.SetVolume(10); !errors.Is(err, ErrReleased) {
		t.Fatalf("SetVolume after Release = %v", err)
	}
}

func TestTranslateVLCEvents(t *testing.T) {
	const src = "https://radio.example/lofi"
	tests := []struct {
		ev      vlc.Event
		want    session.EventKind
		wantErr bool
		ok      bool
	}{
		{ev: vlc.MediaPlayerOpening, want: session.EventLoading, ok: true},
		{ev: vlc.MediaPlayerPlaying, want: session.EventReady, ok: true},
		{ev: vlc.MediaPlayerEncounteredError, want: session.EventError, wantErr: true, ok: true},
		{ev: vlc.MediaPlayerEndReached, want: session.EventError, wantErr: true, ok: true},
		{ev: vlc.MediaPlayerBuffering},
		{ev: vlc.MediaPlayerPaused},
	}
	for _, tt := range tests {
		got, ok := translateEvent(tt.ev, src)
		if ok != tt.ok {
			t.Fatalf("translateEvent(%v) ok = %v, want %v", tt.ev, ok, tt.ok)
		}
		if !ok {
			continue
		}
		if got.Kind != tt.want || got.Source != src || (got.Err != nil) != tt.wantErr {
			t.Fatalf("translateEvent(%v) = %+v", tt.ev, got)
		}
	}
}

func TestVLCCallsAfterReleaseFail(t *testing.T) {
	// A player whose libVLC handle is gone but whose released flag was not
	// yet observed, as when Release runs between the check and the call.
	v := &VLC{log: logging.Discard()}
	v.source.Store("")
	if err := v.SetSource("https://radio.example/lofi"); !errors.Is(err, ErrReleased) {
		t.Fatalf("SetSource = %v, want ErrReleased", err)
	}
	if err := v.SetVolume(50); !errors.Is(err, ErrReleased) {
		t.Fatalf("SetVolume = %v, want ErrReleased", err)
	}
	if got := v.Source(); got != "" {
		t.Fatalf("Source = %q after failed SetSource", got)
	}
}
