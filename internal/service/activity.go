package service

import (
	"context"
	"log"

	"github.com/danuartha/kabarkita/internal/model"
	"github.com/danuartha/kabarkita/internal/repository"
	"github.com/google/uuid"
)

// recordActivity appends an audit entry. The audit trail is best-effort: a
// write failure is logged and never fails the operation being audited.
func recordActivity(ctx context.Context, repo repository.ActivityRepository, userID uuid.UUID, action string, targetID *uuid.UUID, description string) {
	activity := &model.Activity{
		UserID:      userID,
		Action:      action,
		TargetID:    targetID,
		Description: description,
	}
	if err := repo.Create(ctx, activity); err != nil {
		log.Printf("failed to record %s activity: %v", action, err)
	}
}
