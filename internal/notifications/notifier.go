package notifications

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const approvalsChannel = "approvals:events"

// Notifier publishes approval events into Redis channels: the shared
// approvals channel for reviewer dashboards and the requester's own channel.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishApprovalEvent fans the event out to the approvals channel and the
// requester's channel.
func (n *Notifier) PublishApprovalEvent(ctx context.Context, event ApprovalEvent) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := event.encode()
	if err != nil {
		return err
	}
	pipe := n.rdb.Pipeline()
	pipe.Publish(ctx, approvalsChannel, payload)
	pipe.Publish(ctx, UserChannel(event.RequesterID), payload)
	_, err = pipe.Exec(ctx)
	return err
}

// Close is a no-op; the Redis client is owned by the cache package.
func (n *Notifier) Close() error { return nil }

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID uint) string {
	return "notifications:user:" + strconv.FormatUint(uint64(userID), 10)
}

// NewPublisher picks the event backend: "redis", "kafka" or "none". A backend
// that is not configured falls back to Noop.
func NewPublisher(backend string, rdb *redis.Client, brokers []string, topic string) Publisher {
	switch strings.ToLower(backend) {
	case "kafka":
		if len(brokers) > 0 {
			return NewKafkaPublisher(brokers, topic)
		}
	case "redis":
		if rdb != nil {
			return NewNotifier(rdb)
		}
	}
	return Noop{}
}
