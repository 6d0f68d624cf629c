package gov

import (
	"testing"
	"time"

	"github.com/councilbot/councillor/src/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ballots(stances ...bool) []types.Vote {
	votes := make([]types.Vote, len(stances))
	for i, s := range stances {
		votes[i] = types.Vote{Stance: s}
	}
	return votes
}

func TestTallyBallots(t *testing.T) {
	yes, no := TallyBallots(ballots(true, true, false))
	assert.Equal(t, 2, yes)
	assert.Equal(t, 1, no)

	yes, no = TallyBallots(nil)
	assert.Zero(t, yes)
	assert.Zero(t, no)
}

func TestProposalPassed(t *testing.T) {
	tests := []struct {
		name     string
		yes      int
		total    int
		required float64
		want     bool
	}{
		{"two thirds beats half", 2, 3, 0.5, true},
		{"exactly half does not pass", 1, 2, 0.5, false},
		{"no ballots never passes", 0, 0, 0.5, false},
		{"unanimous no", 0, 3, 0.5, false},
		{"supermajority boundary", 2, 3, 0.66, true},
		{"supermajority missed", 3, 5, 0.66, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProposalPassed(tt.yes, tt.total, tt.required))
		})
	}
}

func TestProposalPassedMonotonic(t *testing.T) {
	// More yes votes at a fixed no count never flips a pass back to a fail.
	passed := false
	for yes := 0; yes <= 10; yes++ {
		next := ProposalPassed(yes, yes+4, 0.5)
		if passed {
			assert.True(t, next, "yes=%d", yes)
		}
		passed = next
	}
	assert.True(t, passed)
}

func candidate(id string, votes int, registered time.Time) types.ElectionCandidate {
	return types.ElectionCandidate{ID: id, Name: id, VoteCount: votes, RegisteredAt: registered}
}

func TestElectWinners(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	candidates := []types.ElectionCandidate{
		candidate("d", 0, base),
		candidate("b", 3, base.Add(2*time.Hour)),
		candidate("a", 5, base.Add(3*time.Hour)),
		candidate("c", 3, base.Add(1*time.Hour)),
	}

	winners := ElectWinners(candidates, 2)
	require.Len(t, winners, 2)
	assert.Equal(t, "a", winners[0].ID)
	// b and c are tied; c registered first.
	assert.Equal(t, "c", winners[1].ID)
}

func TestElectWinnersZeroVoteSeatStaysEmpty(t *testing.T) {
	base := time.Now().UTC()
	candidates := []types.ElectionCandidate{
		candidate("a", 5, base),
		candidate("b", 3, base),
		candidate("c", 3, base),
		candidate("d", 0, base),
	}

	// Four seats available, but d got no votes: only three are seated.
	winners := ElectWinners(candidates, 4)
	require.Len(t, winners, 3)
	for _, w := range winners {
		assert.NotEqual(t, "d", w.ID)
	}
}

func TestElectWinnersTieBreakDeterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// Nine candidates with duplicate counts in scrambled insertion order.
	candidates := []types.ElectionCandidate{
		candidate("i", 1, base.Add(9*time.Minute)),
		candidate("c", 4, base.Add(3*time.Minute)),
		candidate("g", 2, base.Add(7*time.Minute)),
		candidate("a", 4, base.Add(1*time.Minute)),
		candidate("e", 2, base.Add(5*time.Minute)),
		candidate("h", 1, base.Add(8*time.Minute)),
		candidate("b", 4, base.Add(2*time.Minute)),
		candidate("f", 2, base.Add(6*time.Minute)),
		candidate("d", 4, base.Add(4*time.Minute)),
	}

	winners := ElectWinners(candidates, 6)
	require.Len(t, winners, 6)
	got := make([]string, len(winners))
	for i, w := range winners {
		got[i] = w.ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, got)

	// Shuffled input ranks identically.
	again := ElectWinners([]types.ElectionCandidate{
		candidates[4], candidates[8], candidates[0], candidates[2],
		candidates[6], candidates[1], candidates[3], candidates[7], candidates[5],
	}, 6)
	gotAgain := make([]string, len(again))
	for i, w := range again {
		gotAgain[i] = w.ID
	}
	assert.Equal(t, got, gotAgain)
}

func TestChancellorWinner(t *testing.T) {
	base := time.Now().UTC()

	_, err := ChancellorWinner(nil)
	assert.ErrorIs(t, err, ErrNoVotesCast)

	_, err = ChancellorWinner([]types.ElectionCandidate{
		candidate("a", 0, base),
		candidate("b", 0, base),
	})
	assert.ErrorIs(t, err, ErrNoVotesCast)

	winner, err := ChancellorWinner([]types.ElectionCandidate{
		candidate("a", 2, base),
		candidate("b", 7, base),
	})
	require.NoError(t, err)
	assert.Equal(t, "b", winner.ID)
}
