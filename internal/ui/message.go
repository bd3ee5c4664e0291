package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgUpdate MsgKind = iota
	MsgUpdatesClosed
	MsgCommandDone
)

// commandResult is what a dispatched intent reports back.
type commandResult struct {
	label string
	err   error
}

// updateMsg is the constructor for [MsgUpdate]
func updateMsg(u tasks.Update) Msg {
	return Msg{kind: MsgUpdate, data: u}
}

// updatesClosedMsg is the constructor for [MsgUpdatesClosed]
func updatesClosedMsg() Msg {
	return Msg{kind: MsgUpdatesClosed}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(label string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandResult{label: label, err: err}}
}
