package prefs

import (
	"sync/atomic"

	"fyne.io/fyne/v2"
)

// absent marks keys missing from fyne preferences, which has no lookup that
// reports presence.
const absent = "\x00lofiradio-absent"

// FyneStore adapts fyne.Preferences, so the GUI shares the platform
// preference file fyne already manages.
type FyneStore struct {
	p      fyne.Preferences
	closed atomic.Bool
	subs   listeners
}

// NewFyneStore wraps p and forwards fyne change notifications to subscribers.
func NewFyneStore(p fyne.Preferences) *FyneStore {
	s := &FyneStore{p: p}
	p.AddChangeListener(func() {
		if !s.closed.Load() {
			s.subs.notify("")
		}
	})
	return s
}

func (s *FyneStore) Get(key string) (string, bool, error) {
	if s.closed.Load() {
		return "", false, ErrClosed
	}
	v := s.p.StringWithFallback(key, absent)
	if v == absent {
		return "", false, nil
	}
	return v, true, nil
}

func (s *FyneStore) Set(key, value string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	s.p.SetString(key, value)
	return nil
}

// Subscribe registers fn; fyne does not say which key changed so fn always
// receives "".
func (s *FyneStore) Subscribe(fn func(key string)) func() { return s.subs.add(fn) }

func (s *FyneStore) Close() error {
	s.closed.Store(true)
	return nil
}
