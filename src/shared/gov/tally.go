package gov

import (
	"errors"
	"sort"

	"github.com/councilbot/councillor/src/shared/types"
)

var ErrNoVotesCast = errors.New("gov: no votes cast")

// TallyBallots counts stances over a set of ballots.
func TallyBallots(votes []types.Vote) (yes, no int) {
	for _, v := range votes {
		if v.Stance {
			yes++
		} else {
			no++
		}
	}
	return yes, no
}

// ProposalPassed applies the strict-majority rule: a proposal passes only
// when yes/total exceeds the required share. Zero ballots never pass.
func ProposalPassed(yes, total int, required float64) bool {
	if total == 0 {
		return false
	}
	return float64(yes)/float64(total) > required
}

// RankCandidates orders candidates by vote count descending. Equal counts are
// broken by earliest registration, then by id, so the ranking is stable
// across runs regardless of query order.
func RankCandidates(candidates []types.ElectionCandidate) []types.ElectionCandidate {
	ranked := make([]types.ElectionCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].VoteCount != ranked[j].VoteCount {
			return ranked[i].VoteCount > ranked[j].VoteCount
		}
		if !ranked[i].RegisteredAt.Equal(ranked[j].RegisteredAt) {
			return ranked[i].RegisteredAt.Before(ranked[j].RegisteredAt)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// ElectWinners picks up to seats winners from the ranked candidates. A
// candidate with zero votes never takes a seat, even when seats remain.
func ElectWinners(candidates []types.ElectionCandidate, seats int) []types.ElectionCandidate {
	if seats <= 0 {
		return nil
	}
	ranked := RankCandidates(candidates)
	winners := make([]types.ElectionCandidate, 0, seats)
	for _, c := range ranked {
		if len(winners) == seats {
			break
		}
		if c.VoteCount == 0 {
			break // ranked order: everything after is also zero
		}
		winners = append(winners, c)
	}
	return winners
}

// ChancellorWinner picks the single winner of a chancellor election. It
// refuses to crown anyone when no ballots were cast.
func ChancellorWinner(candidates []types.ElectionCandidate) (types.ElectionCandidate, error) {
	if len(candidates) == 0 {
		return types.ElectionCandidate{}, ErrNoVotesCast
	}
	ranked := RankCandidates(candidates)
	if ranked[0].VoteCount == 0 {
		return types.ElectionCandidate{}, ErrNoVotesCast
	}
	return ranked[0], nil
}
