package alarm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher is the part of a redis client used to fan reminders out to other processes.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Channel is the pub/sub channel carrying reminders for one user.
func Channel(userID uuid.UUID) string {
	return "todo:alarms:" + userID.String()
}

// RedisNotifier publishes reminders as JSON on the owner's channel.
type RedisNotifier struct {
	client Publisher
}

func NewRedisNotifier(client Publisher) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, r Reminder) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode reminder: %w", err)
	}
	if err := n.client.Publish(ctx, Channel(r.UserID), payload).Err(); err != nil {
		return fmt.Errorf("publish reminder: %w", err)
	}
	return nil
}
