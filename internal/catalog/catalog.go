// Package catalog holds the ordered, read-only list of radio stations and the
// navigation helpers the playback controller relies on.
package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCatalog is returned when a station source yields no stations.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrDuplicateID is returned when two stations share an id.
	ErrDuplicateID = errors.New("duplicate station id")
	// ErrInvalidStation is returned for stations without an id or stream URL.
	ErrInvalidStation = errors.New("invalid station")
)

// Station is a named internet audio stream. Identity is ID.
type Station struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	StreamURL   string `yaml:"url"`
	Description string `yaml:"description"`
	Artwork     string `yaml:"image"`
}

// DisplayName returns Name, or ID when the station has no name.
func (s Station) DisplayName() string {
	if n := strings.TrimSpace(s.Name); n != "" {
		return n
	}
	return s.ID
}

// Catalog is an ordered station list. The order drives next/previous.
type Catalog struct {
	stations []Station
	index    map[string]int
}

// New validates stations and builds a Catalog. An empty slice is accepted and
// produces an empty catalog; navigation on it is a no-op.
func New(stations []Station) (*Catalog, error) {
	c := &Catalog{
		stations: make([]Station, 0, len(stations)),
		index:    make(map[string]int, len(stations)),
	}
	for i, st := range stations {
		st.ID = strings.TrimSpace(st.ID)
		st.StreamURL = strings.TrimSpace(st.StreamURL)
		if st.ID == "" || st.StreamURL == "" {
			return nil, fmt.Errorf("%w: entry %d needs id and url", ErrInvalidStation, i)
		}
		if _, dup := c.index[st.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, st.ID)
		}
		c.index[st.ID] = len(c.stations)
		c.stations = append(c.stations, st)
	}
	return c, nil
}

// Len returns the number of stations. A nil catalog has none.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.stations)
}

// All returns a copy of the stations in catalog order.
func (c *Catalog) All() []Station {
	if c == nil {
		return nil
	}
	out := make([]Station, len(c.stations))
	copy(out, c.stations)
	return out
}

// At returns the station at index i.
func (c *Catalog) At(i int) (Station, bool) {
	if c == nil || i < 0 || i >= len(c.stations) {
		return Station{}, false
	}
	return c.stations[i], true
}

// ByID looks a station up by id.
func (c *Catalog) ByID(id string) (Station, bool) {
	i := c.IndexOf(id)
	if i < 0 {
		return Station{}, false
	}
	return c.stations[i], true
}

// IndexOf returns the catalog position of id, or -1.
func (c *Catalog) IndexOf(id string) int {
	if c == nil {
		return -1
	}
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Contains reports whether id is a catalog member.
func (c *Catalog) Contains(id string) bool { return c.IndexOf(id) >= 0 }

// Next returns the station after id, wrapping from the last to the first.
func (c *Catalog) Next(id string) (Station, bool) {
	return c.neighbour(id, 1)
}

// Previous returns the station before id, wrapping from the first to the last.
func (c *Catalog) Previous(id string) (Station, bool) {
	return c.neighbour(id, -1)
}

func (c *Catalog) neighbour(id string, step int) (Station, bool) {
	n := c.Len()
	if n == 0 {
		return Station{}, false
	}
	i := c.IndexOf(id)
	if i < 0 {
		return Station{}, false
	}
	return c.stations[((i+step)%n+n)%n], true
}

// Filter returns the stations whose name or description contains query,
// case-insensitively. A blank query returns every station.
func (c *Catalog) Filter(query string) []Station {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return c.All()
	}
	var out []Station
	for _, st := range c.All() {
		if strings.Contains(strings.ToLower(st.Name), q) || strings.Contains(strings.ToLower(st.Description), q) {
			out = append(out, st)
		}
	}
	return out
}

// NormalizeStreamURL trims the URL and forces a secure transport: http://
// becomes https:// and scheme-less hosts get https:// prepended.
func NormalizeStreamURL(raw string) string {
	u := strings.Trim(raw, "\r\n\t ")
	if u == "" {
		return ""
	}
	lower := strings.ToLower(u)
	switch {
	case strings.HasPrefix(lower, "https://"):
		return u
	case strings.HasPrefix(lower, "http://"):
		return "https://" + u[len("http://"):]
	case strings.Contains(u, "://"):
		// other schemes (e.g. file://) are left to the device
		return u
	default:
		return "https://" + u
	}
}
