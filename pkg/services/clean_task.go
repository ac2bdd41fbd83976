package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/tabula/pkg/cleaning"
	"github.com/ekaya-inc/tabula/pkg/database"
	"github.com/ekaya-inc/tabula/pkg/services/workqueue"
)

// CleanTaskName names queued cleaning runs in task snapshots.
const CleanTaskName = "clean"

// CleanTask runs CleaningService.CleanData in the background. Each attempt acquires its
// own database scope since the request that queued it has already returned.
type CleanTask struct {
	workqueue.BaseTask
	cleaning CleaningService
	scopes   database.ScopeProvider
	fileID   uuid.UUID
	opts     cleaning.Options
	force    bool
}

// NewCleanTask creates a queued cleaning run for fileID.
func NewCleanTask(svc CleaningService, scopes database.ScopeProvider, fileID uuid.UUID, opts cleaning.Options, force bool) *CleanTask {
	return &CleanTask{
		BaseTask: workqueue.NewBaseTask(CleanTaskName),
		cleaning: svc,
		scopes:   scopes,
		fileID:   fileID,
		opts:     opts,
		force:    force,
	}
}

// FileID returns the file being cleaned.
func (t *CleanTask) FileID() uuid.UUID {
	return t.fileID
}

// Execute cleans the file and returns the *models.CleaningResult.
func (t *CleanTask) Execute(ctx context.Context) (any, error) {
	scoped, release, err := t.scopes.WithScope(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database scope: %w", err)
	}
	defer release()

	return t.cleaning.CleanData(scoped, t.fileID, t.opts, t.force)
}
