package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

// record appends an audit entry. It runs inside the caller's transaction,
// so a failure aborts the change being described. A nil repo records nothing.
func record(ctx context.Context, repo repository.ActivityRepository, at time.Time, actorID string, action model.ActivityAction, entityID, details string) *Error {
	if repo == nil {
		return nil
	}

	entry := &model.ActivityEntry{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Action:    action,
		EntityID:  entityID,
		Details:   details,
		CreatedAt: at,
	}
	if err := repo.Create(ctx, entry); err != nil {
		logger.FromContext(ctx).Error("failed to record activity",
			zap.String("action", string(action)),
			zap.String("entity_id", entityID),
			zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to record activity")
	}
	return nil
}

// formatMinor renders an amount held in minor units, e.g. 123456 as "1234.56".
func formatMinor(v int64) string {
	return fmt.Sprintf("%d.%02d", v/100, v%100)
}

type ActivityService struct {
	activity repository.ActivityRepository
}

func NewActivityService(activity repository.ActivityRepository) *ActivityService {
	return &ActivityService{activity: activity}
}

// ListMine returns the actor's own audit trail, newest first.
func (s *ActivityService) ListMine(ctx context.Context, actor auth.Actor, limit, offset int) ([]*model.ActivityEntry, *Error) {
	if actor.ID == "" {
		return nil, NewError(ErrorCodeForbidden, "unknown actor")
	}

	limit, offset = clampPage(limit, offset)
	res, err := s.activity.ListByActor(ctx, actor.ID, limit, offset)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list activity", zap.String("actor_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list activity")
	}
	return res, nil
}
