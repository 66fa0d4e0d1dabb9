// Package host defines the capabilities the binder consumes from a MAXIS
// terminal session. Transport, window focus and keystroke timing belong to
// the implementations; the binder only sees screen regions and a handful of
// navigation keys.
package host

import "context"

// ScreenIO reads and writes fixed regions of the current screen buffer.
// Coordinates are 1-based.
type ScreenIO interface {
	// ReadRegion returns exactly length characters starting at row, col,
	// including any blank-fill characters.
	ReadRegion(length, row, col int) (string, error)
	// WriteRegion types value at row, col. It fails when the position is not
	// editable.
	WriteRegion(value string, row, col int) error
}

// Navigator drives the host between screens. Every call is a blocking round
// trip that returns once the host's response screen is ready.
type Navigator interface {
	// GotoPanel moves to the first screen of group/panel for the case and
	// footer month.
	GotoPanel(ctx context.Context, caseID, month, year, group, panel string) error
	// NextPage pages forward (PF8) within the current panel.
	NextPage(ctx context.Context) error
	// Submit transmits the screen (Enter).
	Submit(ctx context.Context) error
}

// Editor is implemented by navigators whose panels must be put in edit
// mode (PF9) before an existing instance accepts writes.
type Editor interface {
	BeginEdit(ctx context.Context) error
}

// Session bundles the capabilities of one terminal session.
type Session interface {
	ScreenIO
	Navigator
}
