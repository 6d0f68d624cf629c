package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/shared/types"
)

// RegisterCandidate adds a candidate to an election. The unique index on
// (voting_id, discord_id) turns a double registration into a constraint
// error, reported as ErrAlreadyRegistered.
func (s *Store) RegisterCandidate(ctx context.Context, votingID, discordID, name string) (*types.ElectionCandidate, error) {
	candidate := &types.ElectionCandidate{
		ID:           uuid.NewString(),
		VotingID:     votingID,
		DiscordID:    discordID,
		Name:         name,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(candidate).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return candidate, nil
}

func (s *Store) RegisterVoter(ctx context.Context, votingID, discordID, name string) (*types.RegisteredVoter, error) {
	voter := &types.RegisteredVoter{
		ID:           uuid.NewString(),
		VotingID:     votingID,
		DiscordID:    discordID,
		Name:         name,
		RegisteredAt: time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(voter).Error; err != nil {
		if isDuplicate(err) {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return voter, nil
}

func (s *Store) Candidates(ctx context.Context, votingID string) ([]types.ElectionCandidate, error) {
	var candidates []types.ElectionCandidate
	err := s.db.WithContext(ctx).
		Where("voting_id = ?", votingID).
		Order("registered_at ASC").
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func (s *Store) Candidate(ctx context.Context, votingID, candidateID string) (*types.ElectionCandidate, error) {
	var candidate types.ElectionCandidate
	err := s.db.WithContext(ctx).
		First(&candidate, "id = ? AND voting_id = ?", candidateID, votingID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &candidate, nil
}

func (s *Store) RegisteredVoter(ctx context.Context, votingID, discordID string) (*types.RegisteredVoter, error) {
	var voter types.RegisteredVoter
	err := s.db.WithContext(ctx).
		First(&voter, "voting_id = ? AND discord_id = ?", votingID, discordID).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &voter, nil
}

func (s *Store) RegisteredVoters(ctx context.Context, votingID string) ([]types.RegisteredVoter, error) {
	var voters []types.RegisteredVoter
	err := s.db.WithContext(ctx).
		Where("voting_id = ?", votingID).
		Order("registered_at ASC").
		Find(&voters).Error
	if err != nil {
		return nil, err
	}
	return voters, nil
}

// CastElectionBallot marks the voter as having voted and bumps the candidate's
// count in one transaction. The voter flag is flipped with a CAS so a voter
// cannot vote twice even under concurrent clicks.
func (s *Store) CastElectionBallot(ctx context.Context, votingID, voterDiscordID, candidateID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&types.RegisteredVoter{}).
			Where("voting_id = ? AND discord_id = ? AND has_voted = ?", votingID, voterDiscordID, false).
			Update("has_voted", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&types.RegisteredVoter{}).
				Where("voting_id = ? AND discord_id = ?", votingID, voterDiscordID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return ErrNotFound
			}
			return ErrAlreadyVoted
		}

		res = tx.Model(&types.ElectionCandidate{}).
			Where("id = ? AND voting_id = ?", candidateID, votingID).
			Update("vote_count", gorm.Expr("vote_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *Store) MarkElected(ctx context.Context, candidateIDs []string) error {
	if len(candidateIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&types.ElectionCandidate{}).
		Where("id IN ?", candidateIDs).
		Update("elected", true).Error
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}
