// package services defines interface EnrichmentService for the remote enrichment task queue
package services

import (
	"context"

	"github.com/desertthunder/shelfx/internal/models"
)

// EnrichmentService is the remote task queue and cover/metadata lookup API consumed by the orchestrator.
type EnrichmentService interface {
	// ListTasks returns one page of the task list starting at cursor ("" for the first page).
	ListTasks(ctx context.Context, cursor string, limit int) (*models.TaskPage, error)

	// ProcessTasks asks the queue to advance up to limit tasks.
	ProcessTasks(ctx context.Context, limit int) (*models.ProcessResult, error)

	// ApproveTask applies the selected field values and returns the updated task.
	ApproveTask(ctx context.Context, taskID string, selections []models.FieldSelection) (*models.Task, error)

	// DismissTask marks a task as skipped. The endpoint returns no body.
	DismissTask(ctx context.Context, taskID string) error

	// RetryTask moves a task back to pending and returns it.
	RetryTask(ctx context.Context, taskID string) (*models.Task, error)

	// RetryTaskNow runs a synchronous attempt; the returned task may be in any state.
	RetryTaskNow(ctx context.Context, taskID string) (*models.Task, error)

	// ListSources lists candidate sources for a work, optionally with precomputed comparisons.
	ListSources(ctx context.Context, workID string, query models.SourceQuery) (*models.SourcesResponse, error)

	// CompareSource compares the work's current values against one source.
	CompareSource(ctx context.Context, workID string, key models.CompareKey) (*models.CompareResponse, error)
}

