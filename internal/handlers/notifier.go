package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/safetrade/marketplace/backend/internal/models"
	"github.com/safetrade/marketplace/backend/internal/realtime"
	"github.com/safetrade/marketplace/backend/internal/repositories"
)

// Notifier stores notifications and pushes realtime change notices. Failures are logged,
// never returned: the action that triggered them has already been committed.
type Notifier struct {
	notifications repositories.NotificationRepository
	bus           realtime.Bus
	logger        *slog.Logger
}

func NewNotifier(notifRepo repositories.NotificationRepository, bus realtime.Bus, logger *slog.Logger) *Notifier {
	return &Notifier{notifications: notifRepo, bus: bus, logger: logger}
}

// Notify persists n and tells the recipient's stream about it.
func (n *Notifier) Notify(ctx context.Context, notif *models.Notification) {
	if notif.RecipientID == 0 || notif.RecipientID == notif.ActorID {
		return
	}
	if err := n.notifications.CreateNotification(ctx, notif); err != nil {
		n.logger.ErrorContext(ctx, "creating notification failed",
			"type", notif.Type, "recipient_id", notif.RecipientID, "error", err)
		return
	}
	n.Publish(ctx, realtime.UserTopic(notif.RecipientID), realtime.Event{
		Type:       realtime.EventNotification,
		ResourceID: strconv.FormatUint(uint64(notif.ID), 10),
		ActorID:    notif.ActorID,
	})
}

// Publish sends a change notice on topic.
func (n *Notifier) Publish(ctx context.Context, topic string, ev realtime.Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := n.bus.Publish(ctx, topic, ev); err != nil {
		n.logger.WarnContext(ctx, "publishing realtime event failed", "topic", topic, "type", ev.Type, "error", err)
	}
}

// conversationChanged notifies open streams of a conversation.
func (n *Notifier) conversationChanged(ctx context.Context, convID uint, eventType, resourceID string, actorID uint) {
	n.Publish(ctx, realtime.ConversationTopic(convID), realtime.Event{
		Type:           eventType,
		ConversationID: convID,
		ResourceID:     resourceID,
		ActorID:        actorID,
	})
}
