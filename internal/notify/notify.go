// Package notify hands domain events to the external notification system.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	FriendRequested = "friend.requested"
	FriendAccepted  = "friend.accepted"
	EventCreated    = "event.created"
	EventInvited    = "event.invited"
	EventDeleted    = "event.deleted"
)

type Notification struct {
	Type         string            `json:"type"`
	RecipientIDs []string          `json:"recipient_ids"`
	ActorID      string            `json:"actor_id"`
	Subject      string            `json:"subject"`
	Payload      map[string]string `json:"payload,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) Publish(context.Context, Notification) error { return nil }

// NATSPublisher publishes JSON notifications on huddle.notify.<type>.
type NATSPublisher struct {
	nc *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("huddle-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSPublisher{nc: nc}, nil
}

func Subject(notificationType string) string {
	return "huddle.notify." + notificationType
}

func (p *NATSPublisher) Publish(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return p.nc.Publish(Subject(n.Type), data)
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}

// Send publishes n and logs a failure instead of returning it. Notifications never
// fail the operation that produced them.
func Send(ctx context.Context, p Publisher, log *zap.Logger, n Notification) {
	if p == nil || len(n.RecipientIDs) == 0 {
		return
	}
	if err := p.Publish(ctx, n); err != nil && log != nil {
		log.Warn("[Notify] publish failed",
			zap.String("type", n.Type),
			zap.String("actor", n.ActorID),
			zap.Error(err),
		)
	}
}
