package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

// Notifier records a status-change event for a recipient. It is
// fire-and-forget: callers never see delivery failures.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, kind model.EventKind, entityID string)
}

// event is a notification collected inside a transaction and sent after commit.
type event struct {
	recipientID string
	kind        model.EventKind
	entityID    string
}

func emit(ctx context.Context, n Notifier, events []event) {
	if n == nil {
		return
	}
	for _, ev := range events {
		n.Notify(ctx, ev.recipientID, ev.kind, ev.entityID)
	}
}

type NotificationService struct {
	notifications repository.NotificationRepository
	now           func() time.Time
}

func NewNotificationService(notifications repository.NotificationRepository) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		now:           time.Now,
	}
}

func (s *NotificationService) Notify(ctx context.Context, recipientID string, kind model.EventKind, entityID string) {
	n := &model.Notification{
		ID:          uuid.NewString(),
		RecipientID: recipientID,
		Kind:        kind,
		EntityID:    entityID,
		Message:     kind.Message(),
		CreatedAt:   s.now().UTC(),
	}

	if err := s.notifications.Create(ctx, n); err != nil {
		logger.FromContext(ctx).Error("failed to record notification",
			zap.String("recipient_id", recipientID),
			zap.String("kind", string(kind)),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}

func (s *NotificationService) ListForRecipient(ctx context.Context, actor auth.Actor, limit, offset int) ([]*model.Notification, *Error) {
	if actor.ID == "" {
		return nil, NewError(ErrorCodeForbidden, "unknown actor")
	}

	limit, offset = clampPage(limit, offset)
	res, err := s.notifications.ListByRecipient(ctx, actor.ID, limit, offset)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list notifications", zap.String("recipient_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list notifications")
	}
	return res, nil
}
