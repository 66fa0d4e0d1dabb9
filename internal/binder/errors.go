package binder

import (
	"errors"
	"fmt"
)

var (
	// ErrHostRejected: the host answered a transmit with a diagnostic the
	// binder does not acknowledge.
	ErrHostRejected = errors.New("host rejected panel")
	// ErrPaginationAlignment: paging did not end where the protocol says it
	// must.
	ErrPaginationAlignment = errors.New("pagination alignment")
	// ErrSlotOccupied: an append found no free slot in a repeating group.
	ErrSlotOccupied = errors.New("no free slot")
)

// HostRejectedError carries the diagnostic line shown by the host.
type HostRejectedError struct {
	Panel   string
	Step    string
	Message string
}

func (e *HostRejectedError) Error() string {
	return fmt.Sprintf("%s: %s during %s: %q", ErrHostRejected, e.Panel, e.Step, e.Message)
}

func (e *HostRejectedError) Unwrap() error { return ErrHostRejected }

// PaginationAlignmentError reports where paging went wrong.
type PaginationAlignmentError struct {
	Panel string
	Group string
	Pages int
	Msg   string
}

func (e *PaginationAlignmentError) Error() string {
	return fmt.Sprintf("%s: %s.%s after %d page turns: %s", ErrPaginationAlignment, e.Panel, e.Group, e.Pages, e.Msg)
}

func (e *PaginationAlignmentError) Unwrap() error { return ErrPaginationAlignment }

// SlotOccupiedError is returned by Append when every slot is in use.
type SlotOccupiedError struct {
	Panel string
	Group string
	Pages int
}

func (e *SlotOccupiedError) Error() string {
	return fmt.Sprintf("%s: %s.%s is full after %d page turns", ErrSlotOccupied, e.Panel, e.Group, e.Pages)
}

func (e *SlotOccupiedError) Unwrap() error { return ErrSlotOccupied }

// stepError wraps a collaborator failure with the step that was running.
func stepError(panel, step string, err error) error {
	return fmt.Errorf("%s: %s: %w", panel, step, err)
}
