package prefs

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Store keys.
const (
	KeyVolume      = "volume"
	KeyFavorites   = "favorites"
	KeyLastStation = "last_station"
	KeyAutoplay    = "autoplay_last_station"
)

// DefaultVolume is used when no valid volume is stored.
const DefaultVolume = 80

// Preferences is the typed view of a Store. Values are loaded once and every
// setter persists immediately; persistence failures are logged, never
// returned, so playback never depends on storage health.
type Preferences struct {
	store Store
	log   *log.Logger

	mu          sync.RWMutex
	volume      int
	favorites   []string
	lastStation string
	autoplay    bool

	unsubscribe func()
}

// Load reads every key from store. Unparsable values are logged at warn level
// and replaced with defaults.
func Load(store Store, logger *log.Logger) *Preferences {
	if logger == nil {
		logger = log.Default()
	}
	p := &Preferences{store: store, log: logger, volume: DefaultVolume}
	p.reload("")
	p.unsubscribe = store.Subscribe(p.reload)
	return p
}

// Close detaches from the store. It does not close the store itself.
func (p *Preferences) Close() {
	if p.unsubscribe != nil {
		p.unsubscribe()
	}
}

// reload re-reads key (or every key for ""). Store subscribers call it, so
// external writers such as another fyne window are picked up.
func (p *Preferences) reload(key string) {
	if key == "" || key == KeyVolume {
		if raw, ok := p.get(KeyVolume); ok {
			if v, err := parseVolume(raw); err != nil {
				p.log.Warn("ignoring stored volume", "value", raw, "err", err)
			} else {
				p.mu.Lock()
				p.volume = v
				p.mu.Unlock()
			}
		}
	}
	if key == "" || key == KeyFavorites {
		if raw, ok := p.get(KeyFavorites); ok {
			var ids []string
			if err := json.Unmarshal([]byte(raw), &ids); err != nil {
				p.log.Warn("ignoring stored favorites", "err", err)
			} else {
				p.mu.Lock()
				p.favorites = dedupe(ids)
				p.mu.Unlock()
			}
		}
	}
	if key == "" || key == KeyLastStation {
		if raw, ok := p.get(KeyLastStation); ok {
			p.mu.Lock()
			p.lastStation = strings.TrimSpace(raw)
			p.mu.Unlock()
		}
	}
	if key == "" || key == KeyAutoplay {
		if raw, ok := p.get(KeyAutoplay); ok {
			if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err != nil {
				p.log.Warn("ignoring stored autoplay flag", "value", raw, "err", err)
			} else {
				p.mu.Lock()
				p.autoplay = b
				p.mu.Unlock()
			}
		}
	}
}

func (p *Preferences) get(key string) (string, bool) {
	v, ok, err := p.store.Get(key)
	if err != nil {
		p.log.Warn("preference read failed", "key", key, "err", err)
		return "", false
	}
	return v, ok
}

func (p *Preferences) set(key, value string) {
	if err := p.store.Set(key, value); err != nil {
		p.log.Warn("preference write failed", "key", key, "err", err)
	}
}

func parseVolume(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("volume %d out of range", v)
	}
	return v, nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Volume returns the stored volume in [0,100].
func (p *Preferences) Volume() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume
}

// SetVolume clamps and persists v.
func (p *Preferences) SetVolume(v int) {
	v = min(max(v, 0), 100)
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	p.set(KeyVolume, strconv.Itoa(v))
}

// Favorites returns the favorite station ids in insertion order.
func (p *Preferences) Favorites() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.favorites)
}

// IsFavorite reports whether id is a favorite.
func (p *Preferences) IsFavorite(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Contains(p.favorites, id)
}

// ToggleFavorite adds or removes id and returns the new membership.
func (p *Preferences) ToggleFavorite(id string) bool {
	p.mu.Lock()
	var now bool
	if i := slices.Index(p.favorites, id); i >= 0 {
		p.favorites = slices.Delete(p.favorites, i, i+1)
	} else {
		p.favorites = append(p.favorites, id)
		now = true
	}
	raw, _ := json.Marshal(p.favorites)
	p.mu.Unlock()
	p.set(KeyFavorites, string(raw))
	return now
}

// LastStation returns the id of the last selected station, or "".
func (p *Preferences) LastStation() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStation
}

// SetLastStation persists id as the last selected station.
func (p *Preferences) SetLastStation(id string) {
	p.mu.Lock()
	changed := p.lastStation != id
	p.lastStation = id
	p.mu.Unlock()
	if changed {
		p.set(KeyLastStation, id)
	}
}

// Autoplay reports whether the last station starts automatically.
func (p *Preferences) Autoplay() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.autoplay
}

// SetAutoplay persists the autoplay-last-station flag.
func (p *Preferences) SetAutoplay(on bool) {
	p.mu.Lock()
	p.autoplay = on
	p.mu.Unlock()
	p.set(KeyAutoplay, strconv.FormatBool(on))
}
