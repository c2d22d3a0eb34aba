package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/edward-ap/lofiradio/internal/catalog"
	"github.com/edward-ap/lofiradio/internal/session"
)

var _ list.Item = stationItem{}

// stationItem wraps [catalog.Station] with the markers the list shows.
type stationItem struct {
	station  catalog.Station
	current  bool
	status   session.Status
	favorite bool
	failed   bool
}

func (i stationItem) FilterValue() string {
	return i.station.DisplayName() + " " + i.station.Description
}

func (i stationItem) Title() string {
	var b strings.Builder
	switch {
	case i.current && i.status == session.Playing:
		b.WriteString("▶ ")
	case i.current && i.status == session.Loading:
		b.WriteString("… ")
	case i.current:
		b.WriteString("■ ")
	default:
		b.WriteString("  ")
	}
	b.WriteString(i.station.DisplayName())
	if i.favorite {
		b.WriteString(" ★")
	}
	if i.failed {
		b.WriteString(" ⚠")
	}
	return b.String()
}

func (i stationItem) Description() string { return i.station.Description }

func stationItems(stations []catalog.Station, s session.Snapshot) []list.Item {
	items := make([]list.Item, len(stations))
	for i, st := range stations {
		items[i] = stationItem{
			station:  st,
			current:  s.IsCurrent(st.ID),
			status:   s.Status,
			favorite: s.IsFavorite(st.ID),
			failed:   s.HasError(st.ID),
		}
	}
	return items
}
