// Package notifications publishes user-facing events into Redis channels for
// delivery by the push gateway.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published on user channels.
const (
	EventEntryApproved = "entry_approved"
	EventEntryRejected = "entry_rejected"
)

// UserChannel returns the Redis channel for a user's notifications.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// ModerationNotice tells an author the outcome of a review.
type ModerationNotice struct {
	Type       string    `json:"type"`
	EntryID    uint      `json:"entry_id"`
	Title      string    `json:"title"`
	Reason     string    `json:"reason,omitempty"`
	ReviewedBy uint      `json:"reviewed_by"`
	ReviewedAt time.Time `json:"reviewed_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
// A nil client yields a no-op notifier.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishModerationDecision notifies the author of an approve/reject decision.
func (n *Notifier) PublishModerationDecision(ctx context.Context, authorID uint, notice ModerationNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal moderation notice: %w", err)
	}
	return n.PublishUser(ctx, authorID, string(payload))
}
