// Package notifications publishes approval lifecycle events to Redis or Kafka.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"donasi/internal/models"
)

// Event types.
const (
	EventApprovalSubmitted = "approval.submitted"
	EventApprovalResolved  = "approval.resolved"
)

// ApprovalEvent describes one committed change to an approval.
type ApprovalEvent struct {
	Type        string                `json:"type"`
	ApprovalID  uint                  `json:"approval_id"`
	ActionType  models.ActionType     `json:"action_type"`
	EntityID    uint                  `json:"entity_id"`
	Status      models.ApprovalStatus `json:"status"`
	RequesterID uint                  `json:"requester_id"`
	ActorID     uint                  `json:"actor_id"`
	OccurredAt  time.Time             `json:"occurred_at"`
}

// NewApprovalEvent builds an event from the approval as committed.
func NewApprovalEvent(eventType string, a *models.Approval, actorID uint) ApprovalEvent {
	return ApprovalEvent{
		Type:        eventType,
		ApprovalID:  a.ID,
		ActionType:  a.ActionType,
		EntityID:    a.EntityID,
		Status:      a.Status,
		RequesterID: a.RequesterID,
		ActorID:     actorID,
		OccurredAt:  time.Now().UTC(),
	}
}

// Key is the partition key: every event of one approval lands in order.
func (e ApprovalEvent) Key() string {
	return fmt.Sprintf("approval:%d", e.ApprovalID)
}

func (e ApprovalEvent) encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal approval event: %w", err)
	}
	return b, nil
}

// Publisher delivers approval events after the transaction that produced
// them has committed.
type Publisher interface {
	PublishApprovalEvent(ctx context.Context, event ApprovalEvent) error
	Close() error
}

// Noop discards every event.
type Noop struct{}

func (Noop) PublishApprovalEvent(context.Context, ApprovalEvent) error { return nil }
func (Noop) Close() error { return nil }
