package cashsession

import (
	"github.com/parkyard/parkyard/internal/money"
)

// CanOpen reports whether open is legal from s.
func CanOpen(s State) error {
	switch s {
	case StateNotCreated, StateClosed:
		return nil
	default:
		return ErrInvalidTransition.Wrapf("cannot open from %s", s)
	}
}

// CanClose reports whether close is legal from s.
func CanClose(s State) error {
	if s != StateOpen {
		return ErrInvalidTransition.Wrapf("cannot close from %s", s)
	}
	return nil
}

// CanReopen reports whether reopen is legal from s.
func CanReopen(s State) error {
	if s != StateClosed {
		return ErrInvalidTransition.Wrapf("cannot reopen from %s", s)
	}
	return nil
}

// CanUpdateInitialValue reports whether the initial value may be edited in s.
func CanUpdateInitialValue(s State) error {
	switch s {
	case StateOpen, StateClosed:
		return nil
	default:
		return ErrInvalidTransition.Wrapf("cannot edit initial value in %s", s)
	}
}

// ValidateInitialValue accepts zero but not negative amounts.
func ValidateInitialValue(v money.Amount) error {
	if v.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

// ParkedConfirmation builds the confirmation close asks for when count stays remain.
func ParkedConfirmation(count int) (*Confirmation, error) {
	details := map[string]any{"count": count}
	return &Confirmation{Reason: ReasonVehiclesStillParked, Details: details},
		ErrVehiclesStillParked.WithDetails(details)
}
