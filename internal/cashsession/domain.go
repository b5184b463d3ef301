// Package cashsession owns the lifecycle of the till: opening, closing and
// reopening the cash session, and the rule that only one may be open.
package cashsession

import (
	"time"

	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

// State is the lifecycle state of the register.
type State string

const (
	StateNotCreated State = "NOT_CREATED"
	StateOpen       State = "OPEN"
	StateClosed     State = "CLOSED"
)

// Session is one operating period of the till.
type Session struct {
	ID           int64        `json:"id"`
	OperatorID   int64        `json:"operatorId"`
	Operator     string       `json:"operator"`
	State        State        `json:"state"`
	InitialValue money.Amount `json:"initialValue"`
	OpeningDate  *time.Time   `json:"openingDate"`
	ClosingDate  *time.Time   `json:"closingDate"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Status is the answer to "is the lot operating".
type Status struct {
	State   State    `json:"state"`
	Session *Session `json:"session"`
}

// StatusOf derives the status from the most relevant session, if any.
func StatusOf(s *Session) Status {
	if s == nil {
		return Status{State: StateNotCreated}
	}
	return Status{State: s.State, Session: s}
}

// Confirmation describes a destructive follow-up the operator must approve.
type Confirmation struct {
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

// CloseResult is returned by Close. Exactly one of Session and
// RequiresConfirmation is set.
type CloseResult struct {
	Session              *Session      `json:"session,omitempty"`
	RequiresConfirmation *Confirmation `json:"requiresConfirmation,omitempty"`
	DiscardedVehicles    int           `json:"discardedVehicles,omitempty"`
}

// ReasonVehiclesStillParked is the confirmation reason used by Close.
const ReasonVehiclesStillParked = "VEHICLES_STILL_PARKED"

var (
	// ErrInvalidTransition is returned when a transition is attempted from a state that forbids it.
	ErrInvalidTransition = shared.NewError(shared.KindStateConflict, "INVALID_TRANSITION", "cash session transition not allowed")
	// ErrVehiclesStillParked is returned by Close when stays are INSIDE and the caller did not confirm.
	ErrVehiclesStillParked = shared.NewError(shared.KindStateConflict, ReasonVehiclesStillParked, "vehicles are still parked")
	// ErrInvalidAmount is returned for negative initial values.
	ErrInvalidAmount = shared.NewError(shared.KindValidation, "INVALID_AMOUNT", "initial value cannot be negative")
	// ErrSessionNotFound is returned for unknown session ids.
	ErrSessionNotFound = shared.NewError(shared.KindNotFound, "SESSION_NOT_FOUND", "cash session not found")
	// ErrNoOpenSession is returned by operations that need the lot to be operating.
	ErrNoOpenSession = shared.NewError(shared.KindStateConflict, "NO_OPEN_SESSION", "no cash session is open")
)
