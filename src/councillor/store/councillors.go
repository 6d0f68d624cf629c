package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/councilbot/councillor/src/shared/types"
)

func (s *Store) Councillor(ctx context.Context, discordID, guildID string) (*types.Councillor, error) {
	var councillor types.Councillor
	err := s.db.WithContext(ctx).
		First(&councillor, "discord_id = ? AND council_id = ? AND active = ?", discordID, CouncilID(guildID), true).
		Error
	if err != nil {
		return nil, notFound(err)
	}
	return &councillor, nil
}

func (s *Store) Councillors(ctx context.Context, guildID string, activeOnly bool) ([]types.Councillor, error) {
	q := s.db.WithContext(ctx).Where("council_id = ?", CouncilID(guildID))
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var councillors []types.Councillor
	if err := q.Order("joined_at ASC").Find(&councillors).Error; err != nil {
		return nil, err
	}
	return councillors, nil
}

func (s *Store) CreateCouncillor(ctx context.Context, discordID, name, guildID string) (*types.Councillor, error) {
	councillor := &types.Councillor{
		ID:        uuid.NewString(),
		DiscordID: discordID,
		Name:      name,
		CouncilID: CouncilID(guildID),
		JoinedAt:  time.Now().UTC(),
		Active:    true,
	}
	if err := s.db.WithContext(ctx).Create(councillor).Error; err != nil {
		return nil, err
	}
	return councillor, nil
}

func (s *Store) UpdateCouncillor(ctx context.Context, councillorID string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&types.Councillor{}).Where("id = ?", councillorID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateSeats retires the current council and seats the winners in one
// transaction, so a crash mid-rotation cannot leave the chamber half empty.
// Returns the new councillor rows in winner order.
func (s *Store) RotateSeats(ctx context.Context, guildID string, winners []types.ElectionCandidate) ([]types.Councillor, error) {
	councilID := CouncilID(guildID)
	seated := make([]types.Councillor, 0, len(winners))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.Councillor{}).
			Where("council_id = ? AND active = ?", councilID, true).
			Updates(map[string]interface{}{"active": false, "is_chancellor": false}).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, w := range winners {
			councillor := types.Councillor{
				ID:        uuid.NewString(),
				DiscordID: w.DiscordID,
				Name:      w.Name,
				CouncilID: councilID,
				JoinedAt:  now,
				Active:    true,
			}
			if err := tx.Create(&councillor).Error; err != nil {
				return err
			}
			seated = append(seated, councillor)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seated, nil
}

// CrownChancellor demotes the sitting chancellor, promotes the named
// councillor and updates the council reference, all in one transaction.
func (s *Store) CrownChancellor(ctx context.Context, guildID, councillorID string) error {
	councilID := CouncilID(guildID)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&types.Councillor{}).
			Where("council_id = ? AND is_chancellor = ?", councilID, true).
			Update("is_chancellor", false).Error; err != nil {
			return err
		}

		res := tx.Model(&types.Councillor{}).
			Where("id = ? AND council_id = ? AND active = ?", councillorID, councilID, true).
			Update("is_chancellor", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Model(&types.Council{}).
			Where("id = ?", councilID).
			Update("current_chancellor_id", councillorID).Error
	})
}
