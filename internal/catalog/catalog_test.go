package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func abc(t *testing.T) *Catalog {
	t.Helper()
	c, err := New([]Station{
		{ID: "a", Name: "Alpha", StreamURL: "https://a.example/stream", Description: "chill beats"},
		{ID: "b", Name: "Bravo", StreamURL: "https://b.example/stream", Description: "jazz hop"},
		{ID: "c", Name: "Charlie", StreamURL: "https://c.example/stream", Description: "Rain sounds"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNavigationWraps(t *testing.T) {
	c := abc(t)
	tests := []struct {
		name string
		from string
		next string
		prev string
	}{
		{name: "first", from: "a", next: "b", prev: "c"},
		{name: "middle", from: "b", next: "c", prev: "a"},
		{name: "last", from: "c", next: "a", prev: "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := c.Next(tt.from)
			if !ok || n.ID != tt.next {
				t.Fatalf("Next(%q) = %q,%v want %q", tt.from, n.ID, ok, tt.next)
			}
			p, ok := c.Previous(tt.from)
			if !ok || p.ID != tt.prev {
				t.Fatalf("Previous(%q) = %q,%v want %q", tt.from, p.ID, ok, tt.prev)
			}
		})
	}
}

func TestNextPreviousRoundTrip(t *testing.T) {
	c := abc(t)
	for _, st := range c.All() {
		p, _ := c.Previous(st.ID)
		back, _ := c.Next(p.ID)
		if back.ID != st.ID {
			t.Errorf("Next(Previous(%q)) = %q", st.ID, back.ID)
		}
	}
}

func TestNavigationGuards(t *testing.T) {
	empty, err := New(nil)
	if err != nil {
		t.Fatalf("New(nil): %v", err)
	}
	if _, ok := empty.Next("a"); ok {
		t.Error("Next on empty catalog should report false")
	}
	if _, ok := empty.Previous("a"); ok {
		t.Error("Previous on empty catalog should report false")
	}
	var nilCat *Catalog
	if nilCat.Len() != 0 || nilCat.Contains("a") {
		t.Error("nil catalog should be empty")
	}
	if _, ok := abc(t).Next("missing"); ok {
		t.Error("Next of unknown id should report false")
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New([]Station{{ID: "a", StreamURL: "x"}, {ID: "a", StreamURL: "y"}})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate ids: err = %v, want ErrDuplicateID", err)
	}
	_, err = New([]Station{{ID: " ", StreamURL: "x"}})
	if !errors.Is(err, ErrInvalidStation) {
		t.Errorf("blank id: err = %v, want ErrInvalidStation", err)
	}
}

func TestFilter(t *testing.T) {
	c := abc(t)
	tests := []struct {
		query string
		want  []string
	}{
		{query: "", want: []string{"a", "b", "c"}},
		{query: "JAZZ", want: []string{"b"}},
		{query: "rain", want: []string{"c"}},
		{query: "ch", want: []string{"a", "c"}},
		{query: "nothing", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := c.Filter(tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Filter(%q) returned %d stations, want %d", tt.query, len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Errorf("Filter(%q)[%d] = %q, want %q", tt.query, i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeStreamURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "https://a.example/x", want: "https://a.example/x"},
		{in: "http://a.example/x", want: "https://a.example/x"},
		{in: "HTTP://a.example/x", want: "https://a.example/x"},
		{in: "a.example/x", want: "https://a.example/x"},
		{in: "  https://a.example/x\r\n", want: "https://a.example/x"},
		{in: "file:///tmp/x.mp3", want: "file:///tmp/x.mp3"},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		if got := NormalizeStreamURL(tt.in); got != tt.want {
			t.Errorf("NormalizeStreamURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	if c.Len() != 11 {
		t.Fatalf("default catalog has %d stations, want 11", c.Len())
	}
	first, _ := c.At(0)
	if first.ID != "chillhop" {
		t.Errorf("first station = %q, want chillhop", first.ID)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stations.yaml")
	doc := "stations:\n  - id: x\n    name: X\n    url: http://x.example/live\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	st, ok := c.ByID("x")
	if !ok || st.StreamURL != "http://x.example/live" {
		t.Fatalf("ByID(x) = %+v, %v", st, ok)
	}

	if _, err := Parse([]byte("stations: []\n")); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("empty document: err = %v, want ErrEmptyCatalog", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
