package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// ApproveSuggested approves a task with its own suggested values (one-click approve).
//
// Tasks without suggestions are rejected with [shared.ErrNoSuggestions] before any network call.
func (o *Orchestrator) ApproveSuggested(ctx context.Context, id string) (*models.Task, error) {
	task, err := o.precheck(id, models.ActionApprove)
	if err != nil {
		return nil, err
	}
	if !models.HasSuggestedMetadata(task) {
		return nil, fmt.Errorf("%w: task %s", shared.ErrNoSuggestions, id)
	}

	selections := task.SuggestedSelections()
	return o.runAction(ctx, id, models.ActionApprove, func(ctx context.Context) (*models.Task, error) {
		return o.svc.ApproveTask(ctx, id, selections)
	})
}

// Approve approves a task with explicit field selections.
func (o *Orchestrator) Approve(ctx context.Context, id string, selections []models.FieldSelection) (*models.Task, error) {
	if _, err := o.precheck(id, models.ActionApprove); err != nil {
		return nil, err
	}
	if len(selections) == 0 {
		return nil, fmt.Errorf("%w: task %s", shared.ErrNoSelections, id)
	}

	return o.runAction(ctx, id, models.ActionApprove, func(ctx context.Context) (*models.Task, error) {
		return o.svc.ApproveTask(ctx, id, selections)
	})
}

// Dismiss marks a task as skipped. The endpoint returns no body, so the store receives a local copy.
func (o *Orchestrator) Dismiss(ctx context.Context, id string) (*models.Task, error) {
	task, err := o.precheck(id, models.ActionDismiss)
	if err != nil {
		return nil, err
	}

	return o.runAction(ctx, id, models.ActionDismiss, func(ctx context.Context) (*models.Task, error) {
		if err := o.svc.DismissTask(ctx, id); err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		task.Status = models.StatusSkipped
		task.UpdatedAt = now
		task.FinishedAt = &now
		return &task, nil
	})
}

// Retry sends a task back to the queue.
func (o *Orchestrator) Retry(ctx context.Context, id string) (*models.Task, error) {
	if _, err := o.precheck(id, models.ActionRetry); err != nil {
		return nil, err
	}
	return o.runAction(ctx, id, models.ActionRetry, func(ctx context.Context) (*models.Task, error) {
		return o.svc.RetryTask(ctx, id)
	})
}

// RetryNow runs a synchronous attempt; the task may come back in any state.
func (o *Orchestrator) RetryNow(ctx context.Context, id string) (*models.Task, error) {
	if _, err := o.precheck(id, models.ActionRetryNow); err != nil {
		return nil, err
	}
	return o.runAction(ctx, id, models.ActionRetryNow, func(ctx context.Context) (*models.Task, error) {
		return o.svc.RetryTaskNow(ctx, id)
	})
}

// precheck returns the stored task when action is valid for it.
func (o *Orchestrator) precheck(id string, action models.Action) (models.Task, error) {
	if o.closed.Load() {
		return models.Task{}, shared.ErrClosed
	}
	task, ok := o.store.Task(id)
	if !ok {
		return models.Task{}, fmt.Errorf("%w: %s", shared.ErrTaskNotFound, id)
	}
	if !action.Allows(task.Status) {
		return models.Task{}, fmt.Errorf("%w: cannot %s task %s in status %s",
			shared.ErrInvalidTransition, action, id, task.Status)
	}
	return task, nil
}

func (o *Orchestrator) runAction(
	ctx context.Context, id string, action models.Action, call func(context.Context) (*models.Task, error),
) (*models.Task, error) {
	if !o.beginAction(id, action) {
		return nil, fmt.Errorf("%w: task %s has an action in flight", shared.ErrBusy, id)
	}
	o.pauseDebounce()
	defer func() {
		o.endAction(id)
		o.resumeDebounce()
		o.publish(stateChangedUpdate())
	}()
	o.publish(stateChangedUpdate())

	started := time.Now()
	task, err := call(ctx)
	if o.closed.Load() {
		return task, err
	}
	if err == nil && (task == nil || task.ID != id) {
		err = fmt.Errorf("%w: %s returned no result for task %s", shared.ErrDecodeResponse, action, id)
	}

	summary := models.ActivitySummary{
		Kind:       models.ActivityTaskAction,
		TaskIDs:    []string{id},
		Requested:  1,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err != nil {
		o.publish(errorUpdate(string(action), err))
		summary.Failed, summary.Err = 1, err
		o.record(ctx, summary)
		return nil, err
	}

	prev, existed := o.store.ApplyTaskResult(*task)
	if existed && prev != task.Status && !models.CanTransition(prev, task.Status) {
		o.logger.Debug("unexpected transition from server", "task", id, "from", prev, "to", task.Status)
	}

	o.publish(actionUpdate(action, task))
	if action == models.ActionApprove || (action == models.ActionRetryNow && task.Status == models.StatusComplete) {
		o.publish(libraryUpdatedUpdate(id))
	}

	switch task.Status {
	case models.StatusComplete:
		summary.Applied = 1
	case models.StatusSkipped:
		summary.Skipped = 1
	case models.StatusNeedsReview:
		summary.NeedsReview = 1
	case models.StatusFailed:
		summary.Failed = 1
	}
	summary.Processed = 1
	o.record(ctx, summary)
	return task, nil
}
