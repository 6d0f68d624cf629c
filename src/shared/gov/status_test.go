package gov

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	assert.True(t, StatusPending.CanTransition(StatusVoting))
	assert.True(t, StatusPending.CanTransition(StatusCancelled))
	assert.True(t, StatusVoting.CanTransition(StatusPassed))
	assert.True(t, StatusVoting.CanTransition(StatusFailed))
	assert.True(t, StatusVoting.CanTransition(StatusCancelled))

	// Terminal statuses stay terminal.
	for _, terminal := range []Status{StatusPassed, StatusFailed, StatusCancelled} {
		for _, next := range []Status{StatusPending, StatusVoting, StatusPassed, StatusFailed, StatusCancelled} {
			assert.False(t, terminal.CanTransition(next), "%s -> %s", terminal, next)
		}
	}

	assert.False(t, StatusPending.CanTransition(StatusPassed))
	assert.False(t, StatusVoting.CanTransition(StatusPending))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("voting")
	assert.NoError(t, err)
	assert.Equal(t, StatusVoting, s)

	_, err = ParseStatus("vetoed")
	assert.Error(t, err)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("chancellor_election")
	assert.NoError(t, err)
	assert.True(t, k.IsElection())
	assert.Equal(t, 0.0, k.Config().RequiredPercentage)

	k, err = ParseKind("amendment")
	assert.NoError(t, err)
	assert.False(t, k.IsElection())
	assert.Equal(t, 0.66, k.Config().RequiredPercentage)
	assert.Equal(t, 3, k.Config().VotingDays)

	_, err = ParseKind("law_suggestion")
	assert.Error(t, err)
}
