package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from  State
		ev    event
		ready bool
		to    State
		eff   effect
	}{
		{Idle, eventTry, true, Dispatching, effectDeliver},
		{Idle, eventTry, false, Idle, effectNone},
		{Idle, eventDelivered, false, Idle, effectNone},
		{Idle, eventElapsed, false, Idle, effectNone},
		{Idle, eventReset, false, Idle, effectNone},
		{Dispatching, eventTry, true, Dispatching, effectNone},
		{Dispatching, eventDelivered, false, Cooldown, effectArmCooldown},
		{Dispatching, eventElapsed, false, Dispatching, effectNone},
		{Dispatching, eventReset, false, Dispatching, effectNone},
		{Cooldown, eventTry, true, Cooldown, effectNone},
		{Cooldown, eventDelivered, false, Cooldown, effectNone},
		{Cooldown, eventElapsed, false, Idle, effectRetry},
		{Cooldown, eventReset, false, Idle, effectNone},
	}

	for _, tt := range tests {
		to, eff := transition(tt.from, tt.ev, tt.ready)
		require.Equal(t, tt.to, to, "%s on %d", tt.from, tt.ev)
		require.Equal(t, tt.eff, eff, "%s on %d", tt.from, tt.ev)
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", Idle.String())
	require.Equal(t, "dispatching", Dispatching.String())
	require.Equal(t, "cooldown", Cooldown.String())
}
