package tui

import "github.com/charmbracelet/lipgloss"

var styles = newPalette("#7D56F4", "#04B575", "#FF5F87", "#FFA500", "#626262")

// palette is a small stylesheet of named [lipgloss.Style] values.
type palette struct {
	title   lipgloss.Style
	playing lipgloss.Style
	err     lipgloss.Style
	notice  lipgloss.Style
	muted   lipgloss.Style
}

func newPalette(title, ok, err, warn, muted string) palette {
	return palette{
		title:   newBold(title),
		playing: newBold(ok),
		err:     newBold(err),
		notice:  newStyle(warn),
		muted:   newStyle(muted).Italic(true),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style { return newStyle(fg).Bold(true) }
