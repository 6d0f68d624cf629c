package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/shared/data"
	"github.com/councilbot/councillor/src/shared/types"
)

// Audit appends an audit row and mirrors it onto the Redis stream. Stream
// publish failures are swallowed: the database row is the record, the stream
// is best effort.
func (s *Store) Audit(ctx context.Context, rdb *redis.Client, entry types.AuditLog) error {
	if entry.Severity == "" {
		entry.Severity = "info"
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return err
	}
	data.PublishAudit(ctx, rdb, entry)
	return nil
}

func (s *Store) AuditEntries(ctx context.Context, guildID string, limit int) ([]types.AuditLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	var entries []types.AuditLog
	err := s.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
