package store

import (
	"context"
	"time"

	"github.com/councilbot/councillor/src/shared/gov"
	"github.com/councilbot/councillor/src/shared/types"
)

func (s *Store) CreateVoting(ctx context.Context, voting *types.Voting) error {
	return s.db.WithContext(ctx).Create(voting).Error
}

func (s *Store) Voting(ctx context.Context, votingID string) (*types.Voting, error) {
	var voting types.Voting
	if err := s.db.WithContext(ctx).First(&voting, "id = ?", votingID).Error; err != nil {
		return nil, notFound(err)
	}
	return &voting, nil
}

// OpenVoting returns the single non-terminal voting of the given kind for a
// council, if one exists.
func (s *Store) OpenVoting(ctx context.Context, guildID string, kind gov.Kind) (*types.Voting, error) {
	var voting types.Voting
	err := s.db.WithContext(ctx).
		Where("council_id = ? AND kind = ? AND status IN ?",
			CouncilID(guildID), string(kind), []string{string(gov.StatusPending), string(gov.StatusVoting)}).
		First(&voting).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &voting, nil
}

func (s *Store) ActiveVotings(ctx context.Context, guildID string) ([]types.Voting, error) {
	var votings []types.Voting
	err := s.db.WithContext(ctx).
		Where("council_id = ? AND status IN ?",
			CouncilID(guildID), []string{string(gov.StatusPending), string(gov.StatusVoting)}).
		Order("created_at ASC").
		Find(&votings).Error
	if err != nil {
		return nil, err
	}
	return votings, nil
}

// ExpiredVotings returns votings whose window has closed but whose status is
// still open. The resolver walks these once per cycle.
func (s *Store) ExpiredVotings(ctx context.Context, now time.Time) ([]types.Voting, error) {
	var votings []types.Voting
	err := s.db.WithContext(ctx).
		Where("status = ? AND voting_end IS NOT NULL AND voting_end <= ?", string(gov.StatusVoting), now).
		Order("voting_end ASC").
		Find(&votings).Error
	if err != nil {
		return nil, err
	}
	return votings, nil
}

// TransitionVoting moves a voting from one status to another, refusing
// transitions the status machine does not allow. The UPDATE carries the old
// status in its WHERE clause so two concurrent resolvers cannot both win.
func (s *Store) TransitionVoting(ctx context.Context, votingID string, from, to gov.Status) error {
	if !from.CanTransition(to) {
		return ErrBadTransition
	}
	res := s.db.WithContext(ctx).Model(&types.Voting{}).
		Where("id = ? AND status = ?", votingID, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Store) UpdateVoting(ctx context.Context, votingID string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&types.Voting{}).Where("id = ?", votingID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAnnounced(ctx context.Context, votingID string) error {
	return s.db.WithContext(ctx).Model(&types.Voting{}).
		Where("id = ?", votingID).
		Update("result_announced", true).Error
}
