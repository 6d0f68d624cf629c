package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/councilbot/councillor/src/shared/types"
)

// CastBallot records or replaces a voter's stance on a proposal. The unique
// index on (voting_id, voter_id) makes the upsert race-free: a voter who
// clicks both buttons ends up with exactly one row holding the later stance.
// Returns true when an earlier ballot was replaced.
func (s *Store) CastBallot(ctx context.Context, votingID, voterID string, stance bool) (changed bool, err error) {
	var count int64
	err = s.db.WithContext(ctx).Model(&types.Vote{}).
		Where("voting_id = ? AND voter_id = ?", votingID, voterID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	changed = count > 0

	vote := types.Vote{
		ID:       uuid.NewString(),
		VotingID: votingID,
		VoterID:  voterID,
		Stance:   stance,
		CastAt:   time.Now().UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "voting_id"}, {Name: "voter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stance", "cast_at"}),
	}).Create(&vote).Error
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (s *Store) Votes(ctx context.Context, votingID string) ([]types.Vote, error) {
	var votes []types.Vote
	if err := s.db.WithContext(ctx).Where("voting_id = ?", votingID).Find(&votes).Error; err != nil {
		return nil, err
	}
	return votes, nil
}

func (s *Store) HasVoted(ctx context.Context, votingID, voterID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&types.Vote{}).
		Where("voting_id = ? AND voter_id = ?", votingID, voterID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
