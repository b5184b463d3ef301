package cashsession

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parkyard/parkyard/internal/money"
	"github.com/parkyard/parkyard/internal/shared"
)

func TestTransitionTable(t *testing.T) {
	states := []State{StateNotCreated, StateOpen, StateClosed}
	legal := map[string]map[State]bool{
		"open":    {StateNotCreated: true, StateClosed: true},
		"close":   {StateOpen: true},
		"reopen":  {StateClosed: true},
		"initial": {StateOpen: true, StateClosed: true},
	}
	rules := map[string]func(State) error{
		"open":    CanOpen,
		"close":   CanClose,
		"reopen":  CanReopen,
		"initial": CanUpdateInitialValue,
	}
	for name, rule := range rules {
		for _, st := range states {
			err := rule(st)
			if legal[name][st] {
				require.NoError(t, err, "%s from %s", name, st)
				continue
			}
			require.ErrorIs(t, err, ErrInvalidTransition, "%s from %s", name, st)
			require.Equal(t, shared.KindStateConflict, shared.KindOf(err))
		}
	}
}

func TestInitialValueMayBeZero(t *testing.T) {
	require.NoError(t, ValidateInitialValue(money.Zero))
	err := ValidateInitialValue(money.FromCents(-1))
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestParkedConfirmationCarriesCount(t *testing.T) {
	c, err := ParkedConfirmation(3)
	require.ErrorIs(t, err, ErrVehiclesStillParked)
	require.Equal(t, ReasonVehiclesStillParked, c.Reason)
	require.Equal(t, 3, c.Details["count"])

	e, ok := shared.AsError(err)
	require.True(t, ok)
	require.Equal(t, 3, e.Details["count"])
}
