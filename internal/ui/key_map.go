package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up        key.Binding
	down      key.Binding
	toggle    key.Binding
	selectAll key.Binding
	apply     key.Binding
	retry     key.Binding
	process   key.Binding
	approve   key.Binding
	dismiss   key.Binding
	refresh   key.Binding
	copyID    key.Binding
	quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		selectAll: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "select all")),
		apply:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "apply selected")),
		retry:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry selected")),
		process:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "process batch")),
		approve:   key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "approve")),
		dismiss:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dismiss")),
		refresh:   key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "refresh")),
		copyID:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy id")),
		quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.toggle, k.apply, k.retry, k.process, k.approve, k.dismiss, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.toggle, k.selectAll},
		{k.apply, k.retry, k.process},
		{k.approve, k.dismiss, k.refresh, k.copyID, k.quit},
	}
}
