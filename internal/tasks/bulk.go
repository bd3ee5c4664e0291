package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// BulkOutcome is what happened to one task of a bulk action.
type BulkOutcome string

const (
	OutcomeApplied BulkOutcome = "applied"
	OutcomeFailed  BulkOutcome = "failed"
	OutcomeSkipped BulkOutcome = "skipped"
)

// BulkItem is the result for one task of a bulk action.
type BulkItem struct {
	TaskID  string
	Outcome BulkOutcome
	Task    *models.Task // updated task, nil unless applied
	Err     error
}

// BulkResult aggregates a bulk action. For retries Applied counts tasks sent back to the queue.
type BulkResult struct {
	Kind      models.ActivityKind
	Requested int
	Applied   int
	Failed    int
	Skipped   int
	Items     []BulkItem
}

// Err joins the item errors, or returns nil when nothing failed.
func (r *BulkResult) Err() error {
	var errs []error
	for _, it := range r.Items {
		if it.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", it.TaskID, it.Err))
		}
	}
	return errors.Join(errs...)
}

// ApplySelected approves every selected task with its suggested values, one at a time.
//
// Tasks without suggestions are skipped without a network call. Failures do not stop the run.
// Afterwards the list is refreshed and the selection cleared. A second bulk action started while
// one runs fails with [shared.ErrBusy].
func (o *Orchestrator) ApplySelected(ctx context.Context) (*BulkResult, error) {
	return o.runBulk(ctx, models.ActivityBulkApply, bulkOp{
		action: models.ActionApprove,
		skip: func(task models.Task) bool { return !models.HasSuggestedMetadata(task) },
		call: func(ctx context.Context, task models.Task) (*models.Task, error) {
			return o.svc.ApproveTask(ctx, task.ID, task.SuggestedSelections())
		},
	})
}

// RetrySelected sends every selected task back to the queue, one at a time.
func (o *Orchestrator) RetrySelected(ctx context.Context) (*BulkResult, error) {
	return o.runBulk(ctx, models.ActivityBulkRetry, bulkOp{
		action: models.ActionRetry,
		call: func(ctx context.Context, task models.Task) (*models.Task, error) {
			return o.svc.RetryTask(ctx, task.ID)
		},
	})
}

// bulkOp is the per-task step of a bulk action. skip may be nil.
type bulkOp struct {
	action models.Action
	skip   func(task models.Task) bool
	call   func(ctx context.Context, task models.Task) (*models.Task, error)
}

func (o *Orchestrator) runBulk(ctx context.Context, kind models.ActivityKind, op bulkOp) (*BulkResult, error) {
	if o.closed.Load() {
		return nil, shared.ErrClosed
	}
	if !o.bulkBusy.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("%w: a bulk action is already running", shared.ErrBusy)
	}
	o.pauseDebounce()
	defer func() {
		o.setBulkIDs(nil)
		o.bulkBusy.Store(false)
		o.resumeDebounce()
		o.publish(stateChangedUpdate())
	}()

	phase := PhaseBulkApply
	if kind == models.ActivityBulkRetry {
		phase = PhaseBulkRetry
	}

	ids := o.store.Selected()
	o.setBulkIDs(ids)
	o.publish(stateChangedUpdate())

	result := &BulkResult{Kind: kind, Requested: len(ids)}
	if len(ids) == 0 {
		return result, nil
	}

	logger := o.logger.With("kind", kind, "count", len(ids))
	logger.Info("bulk action started")
	started := time.Now()

	var applied []string
	for i, id := range ids {
		item := o.bulkItem(ctx, id, op)
		result.Items = append(result.Items, item)

		switch item.Outcome {
		case OutcomeApplied:
			result.Applied++
			applied = append(applied, id)
		case OutcomeFailed:
			result.Failed++
			logger.Warn("bulk item failed", "task", id, "err", item.Err)
		case OutcomeSkipped:
			result.Skipped++
		}
		o.publish(bulkItemUpdate(phase, i+1, len(ids), item))
	}

	if o.closed.Load() {
		return result, nil
	}

	if _, err := o.refresh(ctx, false); err != nil {
		logger.Warn("refresh after bulk action failed", "err", err)
	}
	o.store.ClearSelection()

	o.publish(bulkDoneUpdate(phase, result))
	if kind == models.ActivityBulkApply && result.Applied > 0 {
		o.publish(libraryUpdatedUpdate(applied...))
	}
	o.record(ctx, models.ActivitySummary{
		Kind:       kind,
		TaskIDs:    ids,
		Requested:  result.Requested,
		Applied:    result.Applied,
		Failed:     result.Failed,
		Skipped:    result.Skipped,
		Err:        result.Err(),
		StartedAt:  started,
		FinishedAt: time.Now(),
	})
	logger.Info("bulk action finished", "applied", result.Applied, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

// bulkItem runs op for one task. Tasks that left review, have nothing to send or already
// have a single-task action in flight are skipped without a network call.
func (o *Orchestrator) bulkItem(ctx context.Context, id string, op bulkOp) BulkItem {
	task, ok := o.store.Task(id)
	if !ok || !op.action.Allows(task.Status) || (op.skip != nil && op.skip(task)) {
		return BulkItem{TaskID: id, Outcome: OutcomeSkipped}
	}
	if !o.claimBulkItem(id, op.action) {
		o.logger.Debug("task has an action in flight, skipping", "task", id)
		return BulkItem{TaskID: id, Outcome: OutcomeSkipped}
	}
	defer o.endAction(id)

	if err := o.limiter.Wait(ctx); err != nil {
		return BulkItem{TaskID: id, Outcome: OutcomeFailed, Err: err}
	}

	updated, err := op.call(ctx, task)
	if err == nil && (updated == nil || updated.ID != id) {
		err = fmt.Errorf("%w: %s returned no result for task %s", shared.ErrDecodeResponse, op.action, id)
	}
	if err != nil {
		return BulkItem{TaskID: id, Outcome: OutcomeFailed, Err: err}
	}
	if !o.closed.Load() {
		o.store.ApplyTaskResult(*updated)
	}
	return BulkItem{TaskID: id, Outcome: OutcomeApplied, Task: updated}
}
