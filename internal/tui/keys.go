package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the player.
type keyMap struct {
	play     key.Binding
	toggle   key.Binding
	next     key.Binding
	prev     key.Binding
	louder   key.Binding
	quieter  key.Binding
	favorite key.Binding
	autoplay key.Binding
	dismiss  key.Binding
	quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		play:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
		toggle:   key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "play/pause")),
		next:     key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next")),
		prev:     key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous")),
		louder:   key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "louder")),
		quieter:  key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "quieter")),
		favorite: key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "favorite")),
		autoplay: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "autoplay")),
		dismiss:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.play, k.toggle, k.next, k.prev, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.play, k.toggle, k.next, k.prev},
		{k.louder, k.quieter, k.favorite},
		{k.autoplay, k.dismiss, k.quit},
	}
}
