package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/shared/types"
)

// CreateGuild provisions a guild and its council in one transaction. Called
// on bot join and by /setup; safe to call for an existing guild.
func (s *Store) CreateGuild(ctx context.Context, guildID, name, description string, daysRequirement, maxCouncillors int) (*types.Guild, error) {
	guild := &types.Guild{
		ID:              guildID,
		Name:            name,
		Description:     description,
		Enabled:         true,
		LoggingEnabled:  true,
		DaysRequirement: daysRequirement,
		MaxCouncillors:  maxCouncillors,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing types.Guild
		if err := tx.First(&existing, "id = ?", guildID).Error; err == nil {
			return ErrAlreadyExists
		} else if err != gorm.ErrRecordNotFound {
			return err
		}

		if err := tx.Create(&types.Council{
			ID:      CouncilID(guildID),
			GuildID: guildID,
		}).Error; err != nil {
			return err
		}
		return tx.Create(guild).Error
	})
	if err != nil {
		return nil, err
	}
	return guild, nil
}

func (s *Store) Guild(ctx context.Context, guildID string) (*types.Guild, error) {
	var guild types.Guild
	if err := s.db.WithContext(ctx).First(&guild, "id = ?", guildID).Error; err != nil {
		return nil, notFound(err)
	}
	return &guild, nil
}

// UpdateGuild applies a partial update. Fields map keys are column names.
func (s *Store) UpdateGuild(ctx context.Context, guildID string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&types.Guild{}).Where("id = ?", guildID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteGuild removes a guild and its council. Called when the bot is
// removed from a server; dependent records keep their council reference for
// the audit trail.
func (s *Store) DeleteGuild(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&types.Guild{}, "id = ?", guildID).Error; err != nil {
			return err
		}
		return tx.Delete(&types.Council{}, "id = ?", CouncilID(guildID)).Error
	})
}

func (s *Store) Council(ctx context.Context, guildID string) (*types.Council, error) {
	var council types.Council
	if err := s.db.WithContext(ctx).First(&council, "id = ?", CouncilID(guildID)).Error; err != nil {
		return nil, notFound(err)
	}
	return &council, nil
}

func (s *Store) UpdateCouncil(ctx context.Context, guildID string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&types.Council{}).Where("id = ?", CouncilID(guildID)).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// BeginElection flips the election flag only when no election is running.
// The compare is in the WHERE clause so two concurrent announcements cannot
// both succeed.
func (s *Store) BeginElection(ctx context.Context, guildID string) error {
	res := s.db.WithContext(ctx).Model(&types.Council{}).
		Where("id = ? AND election_in_progress = ?", CouncilID(guildID), false).
		Update("election_in_progress", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrElectionInProgress
	}
	return nil
}

func (s *Store) EndElection(ctx context.Context, guildID string) error {
	return s.db.WithContext(ctx).Model(&types.Council{}).
		Where("id = ?", CouncilID(guildID)).
		Update("election_in_progress", false).Error
}
