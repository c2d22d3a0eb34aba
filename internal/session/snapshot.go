package session

import (
	"slices"

	"github.com/edward-ap/lofiradio/internal/catalog"
)

// Snapshot is an immutable copy of the session handed to observers.
// Version grows with every change; observers may drop older snapshots.
type Snapshot struct {
	Version            uint64
	Station            *catalog.Station
	Status             Status
	Volume             int
	StationsWithErrors []string
	RetryCount         int
	Message            string
	NowPlaying         string
	Restored           bool
	Autoplay           bool
	Favorites          []string
}

// StationID returns the current station id, or "".
func (s Snapshot) StationID() string {
	if s.Station == nil {
		return ""
	}
	return s.Station.ID
}

// HasError reports whether id failed and has not played successfully since.
func (s Snapshot) HasError(id string) bool { return slices.Contains(s.StationsWithErrors, id) }

// IsFavorite reports whether id is a favorite.
func (s Snapshot) IsFavorite(id string) bool { return slices.Contains(s.Favorites, id) }

// IsCurrent reports whether id is the current station.
func (s Snapshot) IsCurrent(id string) bool { return s.Station != nil && s.Station.ID == id }
