package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/councilbot/councillor/src/shared/types"
)

func (s *Store) CreateMinistry(ctx context.Context, guildID, name, description, createdBy string) (*types.Ministry, error) {
	if _, err := s.MinistryByName(ctx, guildID, name); err == nil {
		return nil, ErrAlreadyExists
	}
	ministry := &types.Ministry{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CouncilID:   CouncilID(guildID),
		CreatedBy:   createdBy,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(ministry).Error; err != nil {
		return nil, err
	}
	return ministry, nil
}

func (s *Store) MinistryByName(ctx context.Context, guildID, name string) (*types.Ministry, error) {
	var ministry types.Ministry
	err := s.db.WithContext(ctx).
		First(&ministry, "council_id = ? AND name = ? AND active = ?", CouncilID(guildID), name, true).
		Error
	if err != nil {
		return nil, notFound(err)
	}
	return &ministry, nil
}

func (s *Store) Ministries(ctx context.Context, guildID string) ([]types.Ministry, error) {
	var ministries []types.Ministry
	err := s.db.WithContext(ctx).
		Where("council_id = ? AND active = ?", CouncilID(guildID), true).
		Order("created_at ASC").
		Find(&ministries).Error
	if err != nil {
		return nil, err
	}
	return ministries, nil
}

func (s *Store) UpdateMinistry(ctx context.Context, ministryID string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&types.Ministry{}).Where("id = ?", ministryID).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DissolveMinistry deactivates rather than deletes, so the audit trail keeps
// its foreign context.
func (s *Store) DissolveMinistry(ctx context.Context, ministryID string) error {
	return s.UpdateMinistry(ctx, ministryID, map[string]interface{}{"active": false})
}
