package promotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusDraft, StatusActive, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusPaused, false},
		{StatusDraft, StatusExpired, false},
		{StatusActive, StatusPaused, true},
		{StatusActive, StatusCancelled, true},
		{StatusActive, StatusExpired, true},
		{StatusActive, StatusDraft, false},
		{StatusPaused, StatusActive, true},
		{StatusPaused, StatusCancelled, true},
		{StatusPaused, StatusExpired, false},
		{StatusExpired, StatusActive, false},
		{StatusExpired, StatusDraft, false},
		{StatusCancelled, StatusActive, false},
		{StatusCancelled, StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitionAppliesValidChange(t *testing.T) {
	p := &Promotion{Status: StatusDraft}

	require.NoError(t, p.Transition(StatusActive))
	assert.Equal(t, StatusActive, p.Status)
}

func TestTransitionRejectsInvalidChange(t *testing.T) {
	p := &Promotion{Status: StatusExpired}

	err := p.Transition(StatusActive)

	var invalidErr *InvalidTransitionError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, StatusExpired, invalidErr.From)
	assert.Equal(t, StatusActive, invalidErr.To)
	assert.Equal(t, StatusExpired, p.Status, "status must not change on rejection")
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	all := []Status{StatusDraft, StatusActive, StatusPaused, StatusExpired, StatusCancelled}
	for _, terminal := range []Status{StatusExpired, StatusCancelled} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%s -> %s must be rejected", terminal, to)
		}
	}
}
