package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mediafetch/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind  MsgKind
	index int
	data  any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStarted MsgKind = iota
	MsgEvent
	MsgSaved
	MsgRejected
	MsgAllDone
)

// Kind reports which variant m is.
func (m Msg) Kind() MsgKind { return m.kind }

// StartedMsg is the constructor for [MsgStarted]: row index began as task id.
func StartedMsg(index int, id string) Msg {
	return Msg{kind: MsgStarted, index: index, data: id}
}

// EventMsg is the constructor for [MsgEvent]
func EventMsg(index int, ev models.ProgressEvent) Msg {
	return Msg{kind: MsgEvent, index: index, data: ev}
}

// SavedMsg is the constructor for [MsgSaved]: the finished file was copied to path.
func SavedMsg(index int, path string) Msg {
	return Msg{kind: MsgSaved, index: index, data: path}
}

// RejectedMsg is the constructor for [MsgRejected]: the download could not start or be saved.
func RejectedMsg(index int, err error) Msg {
	return Msg{kind: MsgRejected, index: index, data: err}
}

// AllDoneMsg is the constructor for [MsgAllDone]
func AllDoneMsg() Msg {
	return Msg{kind: MsgAllDone}
}
