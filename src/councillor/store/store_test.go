package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/types"
)

const testGuild = "100200300400500600"

func seedGuild(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.CreateGuild(context.Background(), testGuild, "Test Republic", "", 180, 9)
	require.NoError(t, err)
}

func seedVoting(t *testing.T, s *Store, kind gov.Kind, status gov.Status) *types.Voting {
	t.Helper()
	cfg := kind.Config()
	end := time.Now().UTC().Add(time.Duration(cfg.VotingDays) * 24 * time.Hour)
	voting := &types.Voting{
		ID:                 uuid.NewString(),
		Kind:               string(kind),
		Status:             string(status),
		Title:              "Test voting",
		CouncilID:          CouncilID(testGuild),
		VotingEnd:          end,
		RequiredPercentage: cfg.RequiredPercentage,
	}
	require.NoError(t, s.CreateVoting(context.Background(), voting))
	return voting
}

func TestCreateGuildTwice(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)

	_, err := s.CreateGuild(context.Background(), testGuild, "Again", "", 90, 5)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	council, err := s.Council(context.Background(), testGuild)
	require.NoError(t, err)
	assert.Equal(t, testGuild+"_c", council.ID)
}

func TestBeginElectionGuard(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()

	require.NoError(t, s.BeginElection(ctx, testGuild))
	assert.ErrorIs(t, s.BeginElection(ctx, testGuild), ErrElectionInProgress)

	require.NoError(t, s.EndElection(ctx, testGuild))
	assert.NoError(t, s.BeginElection(ctx, testGuild))
}

func TestCastBallotUpsert(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()
	voting := seedVoting(t, s, gov.KindLegislation, gov.StatusVoting)

	changed, err := s.CastBallot(ctx, voting.ID, "voter-1", true)
	require.NoError(t, err)
	assert.False(t, changed)

	// Switching stance replaces the ballot instead of adding a second row.
	changed, err = s.CastBallot(ctx, voting.ID, "voter-1", false)
	require.NoError(t, err)
	assert.True(t, changed)

	votes, err := s.Votes(ctx, voting.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.False(t, votes[0].Stance)

	voted, err := s.HasVoted(ctx, voting.ID, "voter-1")
	require.NoError(t, err)
	assert.True(t, voted)
}

func TestTransitionVoting(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()
	voting := seedVoting(t, s, gov.KindDecree, gov.StatusPending)

	require.NoError(t, s.TransitionVoting(ctx, voting.ID, gov.StatusPending, gov.StatusVoting))

	// Second identical transition loses the CAS.
	assert.ErrorIs(t, s.TransitionVoting(ctx, voting.ID, gov.StatusPending, gov.StatusVoting), ErrConflict)

	// Jumping straight from voting to pending is not in the machine.
	assert.ErrorIs(t, s.TransitionVoting(ctx, voting.ID, gov.StatusVoting, gov.StatusPending), ErrBadTransition)

	require.NoError(t, s.TransitionVoting(ctx, voting.ID, gov.StatusVoting, gov.StatusPassed))

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusPassed), got.Status)
}

func TestExpiredVotings(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()

	expired := seedVoting(t, s, gov.KindLegislation, gov.StatusVoting)
	require.NoError(t, s.UpdateVoting(ctx, expired.ID, map[string]interface{}{
		"voting_end": time.Now().UTC().Add(-time.Hour),
	}))
	seedVoting(t, s, gov.KindAmendment, gov.StatusVoting) // still running
	closed := seedVoting(t, s, gov.KindDecree, gov.StatusPassed)
	require.NoError(t, s.UpdateVoting(ctx, closed.ID, map[string]interface{}{
		"voting_end": time.Now().UTC().Add(-time.Hour),
	}))

	due, err := s.ExpiredVotings(ctx, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, expired.ID, due[0].ID)
}

func TestElectionRegistrationAndBallots(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()
	voting := seedVoting(t, s, gov.KindElection, gov.StatusPending)

	cand, err := s.RegisterCandidate(ctx, voting.ID, "cand-1", "Alice")
	require.NoError(t, err)
	_, err = s.RegisterCandidate(ctx, voting.ID, "cand-1", "Alice")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	_, err = s.RegisterVoter(ctx, voting.ID, "voter-1", "Bob")
	require.NoError(t, err)
	_, err = s.RegisterVoter(ctx, voting.ID, "voter-1", "Bob")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	require.NoError(t, s.CastElectionBallot(ctx, voting.ID, "voter-1", cand.ID))
	assert.ErrorIs(t, s.CastElectionBallot(ctx, voting.ID, "voter-1", cand.ID), ErrAlreadyVoted)
	assert.ErrorIs(t, s.CastElectionBallot(ctx, voting.ID, "nobody", cand.ID), ErrNotFound)

	candidates, err := s.Candidates(ctx, voting.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, 1, candidates[0].VoteCount)
}

func TestRotateSeats(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()

	old, err := s.CreateCouncillor(ctx, "old-1", "Old Guard", testGuild)
	require.NoError(t, err)

	winners := []types.ElectionCandidate{
		{DiscordID: "new-1", Name: "Alice"},
		{DiscordID: "new-2", Name: "Bob"},
	}
	seated, err := s.RotateSeats(ctx, testGuild, winners)
	require.NoError(t, err)
	require.Len(t, seated, 2)

	active, err := s.Councillors(ctx, testGuild, true)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, c := range active {
		assert.NotEqual(t, old.ID, c.ID)
	}
}

func TestCrownChancellor(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()

	first, err := s.CreateCouncillor(ctx, "disc-1", "Alice", testGuild)
	require.NoError(t, err)
	second, err := s.CreateCouncillor(ctx, "disc-2", "Bob", testGuild)
	require.NoError(t, err)

	require.NoError(t, s.CrownChancellor(ctx, testGuild, first.ID))
	require.NoError(t, s.CrownChancellor(ctx, testGuild, second.ID))

	council, err := s.Council(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, second.ID, council.CurrentChancellorID)

	active, err := s.Councillors(ctx, testGuild, true)
	require.NoError(t, err)
	for _, c := range active {
		assert.Equal(t, c.ID == second.ID, c.IsChancellor)
	}

	assert.ErrorIs(t, s.CrownChancellor(ctx, testGuild, "missing"), ErrNotFound)
}

func TestMinistryLifecycle(t *testing.T) {
	s := newTestStore(t)
	seedGuild(t, s)
	ctx := context.Background()

	ministry, err := s.CreateMinistry(ctx, testGuild, "Treasury", "Budget and spend", "chanc-1")
	require.NoError(t, err)
	_, err = s.CreateMinistry(ctx, testGuild, "Treasury", "Again", "chanc-1")
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.UpdateMinistry(ctx, ministry.ID, map[string]interface{}{
		"minister_discord_id": "min-1",
	}))

	require.NoError(t, s.DissolveMinistry(ctx, ministry.ID))
	_, err = s.MinistryByName(ctx, testGuild, "Treasury")
	assert.ErrorIs(t, err, ErrNotFound)

	// A dissolved name can be reused.
	_, err = s.CreateMinistry(ctx, testGuild, "Treasury", "Reborn", "chanc-2")
	assert.NoError(t, err)
}
