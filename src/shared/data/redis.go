package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/councilbot/councillor/src/shared/logx"
	"github.com/councilbot/councillor/src/shared/types"
)

const streamAudit = "councillor.audit"

func MustRedis(url string) *redis.Client {
	opt, err := redis.ParseURL(url)
	if err != nil {
		logx.Fatal("database", "redis: %v", err)
	}
	return redis.NewClient(opt)
}

// PublishAudit mirrors an audit entry onto the Redis stream for external
// consumers (dashboards, log shippers). Best effort; the DB row is the
// durable copy.
func PublishAudit(ctx context.Context, rdb *redis.Client, entry types.AuditLog) error {
	if rdb == nil {
		return nil
	}
	_, err := rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamAudit,
		Values: map[string]interface{}{
			"guild":    entry.GuildID,
			"type":     entry.Type,
			"action":   entry.Action,
			"discord":  entry.DiscordID,
			"details":  entry.Details,
			"severity": entry.Severity,
			"time":     time.Now().UTC().Unix(),
		},
	}).Result()
	return err
}

// MarshalDetails renders an audit details map as the JSON blob stored on the
// row and the stream.
func MarshalDetails(details map[string]interface{}) string {
	if len(details) == 0 {
		return ""
	}
	b, err := json.Marshal(details)
	if err != nil {
		return ""
	}
	return string(b)
}
