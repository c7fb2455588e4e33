package payroll

import "fmt"

// PeriodStatus enum
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "open"
	PeriodStatusClosed PeriodStatus = "closed"
)

// PeriodEvent is an operation requested against a period.
type PeriodEvent string

const (
	PeriodEventGenerate PeriodEvent = "generate"
	PeriodEventClose    PeriodEvent = "close"
)

// Transition is the only place that decides which period moves are legal.
// CLOSED is terminal: every event on a closed period fails with ErrPeriodClosed.
func (s PeriodStatus) Transition(event PeriodEvent) (PeriodStatus, error) {
	switch s {
	case PeriodStatusOpen:
		switch event {
		case PeriodEventGenerate:
			return PeriodStatusOpen, nil
		case PeriodEventClose:
			return PeriodStatusClosed, nil
		}
	case PeriodStatusClosed:
		return s, ErrPeriodClosed
	}
	return s, fmt.Errorf("%w: %q on period in state %q", ErrIllegalTransition, event, s)
}

func (s PeriodStatus) IsClosed() bool {
	return s == PeriodStatusClosed
}

// ReceiptStatusFor maps a period state onto the state its receipts carry.
func ReceiptStatusFor(s PeriodStatus) ReceiptStatus {
	if s == PeriodStatusClosed {
		return ReceiptStatusClosed
	}
	return ReceiptStatusGenerated
}

// CanReplace reports whether a stored receipt may still be overwritten.
func (s ReceiptStatus) CanReplace() bool {
	return s == ReceiptStatusGenerated
}
