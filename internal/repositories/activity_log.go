package repositories

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/shelfx/internal/models"
)

// ActivityLogAdapter implements tasks.ActivityRecorder using ActivityRepository.
//
// Failed writes are logged and dropped.
type ActivityLogAdapter struct {
	repo   *ActivityRepository
	logger *log.Logger
}

// NewActivityLogAdapter creates a new ActivityLogAdapter. logger may be nil.
func NewActivityLogAdapter(repo *ActivityRepository, logger *log.Logger) *ActivityLogAdapter {
	return &ActivityLogAdapter{repo: repo, logger: logger}
}

// Record persists one finished run.
func (a *ActivityLogAdapter) Record(_ context.Context, summary models.ActivitySummary) {
	record := models.NewActivityRecord(0, summary)
	if err := a.repo.Create(record); err != nil && a.logger != nil {
		a.logger.Warn("failed to record activity", "kind", summary.Kind, "err", err)
	}
}
