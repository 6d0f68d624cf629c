package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/councilbot/councillor/src/councillor/config"
	"github.com/councilbot/councillor/src/councillor/store"
	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/types"
)

const testGuild = "900800700600500400"

type recordingAnnouncer struct {
	proposals   []string
	elections   []string
	failures    []string
	chancellors []string
}

func (r *recordingAnnouncer) ProposalResolved(_ context.Context, v *types.Voting, yes, no int, passed bool) error {
	r.proposals = append(r.proposals, v.ID)
	return nil
}

func (r *recordingAnnouncer) CouncilElected(_ context.Context, v *types.Voting, seated []types.Councillor, _ []string) error {
	r.elections = append(r.elections, v.ID)
	return nil
}

func (r *recordingAnnouncer) ElectionFailed(_ context.Context, v *types.Voting, reason string) error {
	r.failures = append(r.failures, v.ID)
	return nil
}

func (r *recordingAnnouncer) ChancellorElected(_ context.Context, v *types.Voting, c *types.Councillor, _ string) error {
	r.chancellors = append(r.chancellors, v.ID)
	return nil
}

func newTestResolver(t *testing.T) (*Resolver, *store.Store, *recordingAnnouncer) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, data.Migrate(db))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	})

	s := store.New(db)
	_, err = s.CreateGuild(context.Background(), testGuild, "Resolver Republic", "", 180, 3)
	require.NoError(t, err)

	announcer := &recordingAnnouncer{}
	r := New(s, nil, nil, announcer, config.Config{MaxCouncillors: 3})
	return r, s, announcer
}

func expiredVoting(t *testing.T, s *store.Store, kind gov.Kind) *types.Voting {
	t.Helper()
	cfg := kind.Config()
	voting := &types.Voting{
		ID:                 uuid.NewString(),
		Kind:               string(kind),
		Status:             string(gov.StatusVoting),
		Title:              "Expired " + cfg.Name,
		CouncilID:          store.CouncilID(testGuild),
		VotingEnd:          time.Now().UTC().Add(-time.Hour),
		RequiredPercentage: cfg.RequiredPercentage,
	}
	require.NoError(t, s.CreateVoting(context.Background(), voting))
	return voting
}

func TestUntilNext(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 50, 0, 0, time.UTC)
	assert.Equal(t, 15*time.Minute, untilNext(0, 5, now))

	// Exactly on the boundary waits a full day.
	now = time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, 24*time.Hour, untilNext(0, 5, now))

	now = time.Date(2025, 6, 1, 0, 4, 59, 0, time.UTC)
	assert.Equal(t, time.Second, untilNext(0, 5, now))
}

func TestResolveProposalPassed(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()
	voting := expiredVoting(t, s, gov.KindLegislation)

	for i, stance := range []bool{true, true, false} {
		_, err := s.CastBallot(ctx, voting.ID, string(rune('a'+i)), stance)
		require.NoError(t, err)
	}

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusPassed), got.Status)
	assert.True(t, got.ResultAnnounced)
	assert.Equal(t, []string{voting.ID}, announcer.proposals)
}

func TestResolveProposalNoBallotsFails(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()
	voting := expiredVoting(t, s, gov.KindDecree)

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusFailed), got.Status)
	assert.Equal(t, []string{voting.ID}, announcer.proposals)
}

func TestResolveSupermajorityBoundary(t *testing.T) {
	r, s, _ := newTestResolver(t)
	ctx := context.Background()
	voting := expiredVoting(t, s, gov.KindAmendment)

	// 66 of 100 is exactly the required share, and the rule is strict.
	for i := 0; i < 100; i++ {
		voter := uuid.NewString()
		_, err := s.CastBallot(ctx, voting.ID, voter, i < 66)
		require.NoError(t, err)
	}

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusFailed), got.Status)
}

func TestResolveCouncilElection(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()
	require.NoError(t, s.BeginElection(ctx, testGuild))
	voting := expiredVoting(t, s, gov.KindElection)

	var candIDs []string
	for _, name := range []string{"Alice", "Bob", "Carol", "Dave"} {
		c, err := s.RegisterCandidate(ctx, voting.ID, "disc-"+name, name)
		require.NoError(t, err)
		candIDs = append(candIDs, c.ID)
	}
	for i, votes := range []int{5, 3, 2, 0} {
		for v := 0; v < votes; v++ {
			voter := uuid.NewString()
			_, err := s.RegisterVoter(ctx, voting.ID, voter, voter)
			require.NoError(t, err)
			require.NoError(t, s.CastElectionBallot(ctx, voting.ID, voter, candIDs[i]))
		}
	}

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusPassed), got.Status)
	assert.Equal(t, []string{voting.ID}, announcer.elections)

	seated, err := s.Councillors(ctx, testGuild, true)
	require.NoError(t, err)
	require.Len(t, seated, 3)
	names := make(map[string]bool, len(seated))
	for _, c := range seated {
		names[c.Name] = true
	}
	// Dave received zero votes and never takes a seat.
	assert.False(t, names["Dave"])

	council, err := s.Council(ctx, testGuild)
	require.NoError(t, err)
	assert.False(t, council.ElectionInProgress)
}

func TestResolveCouncilElectionNoVotes(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()
	require.NoError(t, s.BeginElection(ctx, testGuild))
	voting := expiredVoting(t, s, gov.KindElection)

	_, err := s.RegisterCandidate(ctx, voting.ID, "disc-1", "Alice")
	require.NoError(t, err)

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusFailed), got.Status)
	assert.Equal(t, []string{voting.ID}, announcer.failures)

	council, err := s.Council(ctx, testGuild)
	require.NoError(t, err)
	assert.False(t, council.ElectionInProgress)
}

func TestResolveChancellorElection(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()

	alice, err := s.CreateCouncillor(ctx, "disc-alice", "Alice", testGuild)
	require.NoError(t, err)
	_, err = s.CreateCouncillor(ctx, "disc-bob", "Bob", testGuild)
	require.NoError(t, err)

	require.NoError(t, s.BeginElection(ctx, testGuild))
	voting := expiredVoting(t, s, gov.KindChancellorElection)

	cand, err := s.RegisterCandidate(ctx, voting.ID, "disc-alice", "Alice")
	require.NoError(t, err)
	_, err = s.RegisterVoter(ctx, voting.ID, "disc-bob", "Bob")
	require.NoError(t, err)
	require.NoError(t, s.CastElectionBallot(ctx, voting.ID, "disc-bob", cand.ID))

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusPassed), got.Status)
	assert.Equal(t, []string{voting.ID}, announcer.chancellors)

	council, err := s.Council(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, council.CurrentChancellorID)
}

func TestResolveChancellorElectionNoVotes(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()
	require.NoError(t, s.BeginElection(ctx, testGuild))
	voting := expiredVoting(t, s, gov.KindChancellorElection)

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, voting.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusFailed), got.Status)
	assert.Equal(t, []string{voting.ID}, announcer.failures)

	council, err := s.Council(ctx, testGuild)
	require.NoError(t, err)
	assert.Empty(t, council.CurrentChancellorID)
	assert.False(t, council.ElectionInProgress)
}

func TestResolveSkipsRunningVotings(t *testing.T) {
	r, s, announcer := newTestResolver(t)
	ctx := context.Background()

	running := &types.Voting{
		ID:                 uuid.NewString(),
		Kind:               string(gov.KindLegislation),
		Status:             string(gov.StatusVoting),
		Title:              "Still running",
		CouncilID:          store.CouncilID(testGuild),
		VotingEnd:          time.Now().UTC().Add(24 * time.Hour),
		RequiredPercentage: 0.5,
	}
	require.NoError(t, s.CreateVoting(ctx, running))

	r.ResolveDue(ctx, time.Now().UTC())

	got, err := s.Voting(ctx, running.ID)
	require.NoError(t, err)
	assert.Equal(t, string(gov.StatusVoting), got.Status)
	assert.Empty(t, announcer.proposals)
}
