package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// loadedOrchestrator returns an orchestrator whose store holds the current task list.
func (r *Runner) loadedOrchestrator(ctx context.Context) (*tasks.Orchestrator, func(), error) {
	orch, cleanup, err := r.newOrchestrator()
	if err != nil {
		return nil, nil, err
	}
	if err := orch.Refresh(ctx, false); err != nil {
		cleanup()
		return nil, nil, err
	}
	return orch, cleanup, nil
}

// TasksList prints the task list, optionally narrowed to one status.
func (r *Runner) TasksList(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	status := models.TaskStatus(cmd.String("status"))
	if status != "" && !status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, status)
	}

	orch, cleanup, err := r.loadedOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	snap := orch.Snapshot()
	list := snap.Tasks
	if status != "" {
		list = snap.Groups[status]
	}

	data, err := formatter.ExportTasks(list, format)
	if err != nil {
		return err
	}
	if err := r.writeBytes(data); err != nil {
		return err
	}
	if format == formatter.FormatText {
		return r.writePlain("%s\n", formatter.FormatCounts(snap.Counts))
	}
	return nil
}

// TasksProcess processes one batch and prints the counts.
func (r *Runner) TasksProcess(ctx context.Context, cmd *cli.Command) error {
	orch, cleanup, err := r.loadedOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := orch.ProcessBatch(ctx, int(cmd.Int("limit")), tasks.EagerRefresh)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", formatter.FormatProcessResult(result))
	return r.writePlain("%s\n", formatter.FormatCounts(orch.Snapshot().Counts))
}

type taskAction func(orch *tasks.Orchestrator, ctx context.Context, id string) (*models.Task, error)

func (r *Runner) runTaskAction(ctx context.Context, cmd *cli.Command, verb string, action taskAction) error {
	id := cmd.String("id")
	if id == "" {
		return fmt.Errorf("%w: --id", shared.ErrMissingArgument)
	}

	orch, cleanup, err := r.loadedOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	task, err := action(orch, ctx, id)
	if err != nil {
		return fmt.Errorf("%s %s: %w", verb, id, err)
	}
	r.logger.Debug("task action", "action", verb, "task", id, "status", task.Status)

	return r.writePlain("✓ %s %s → %s\n", verb, task.ID, task.Status)
}

// TaskApprove approves a task with its suggested values.
func (r *Runner) TaskApprove(ctx context.Context, cmd *cli.Command) error {
	return r.runTaskAction(ctx, cmd, "approve", (*tasks.Orchestrator).ApproveSuggested)
}

// TaskDismiss dismisses a task awaiting review.
func (r *Runner) TaskDismiss(ctx context.Context, cmd *cli.Command) error {
	return r.runTaskAction(ctx, cmd, "dismiss", (*tasks.Orchestrator).Dismiss)
}

// TaskRetry sends a task back to the queue.
func (r *Runner) TaskRetry(ctx context.Context, cmd *cli.Command) error {
	return r.runTaskAction(ctx, cmd, "retry", (*tasks.Orchestrator).Retry)
}

// TaskRetryNow retries a task synchronously.
func (r *Runner) TaskRetryNow(ctx context.Context, cmd *cli.Command) error {
	return r.runTaskAction(ctx, cmd, "retry-now", (*tasks.Orchestrator).RetryNow)
}

type bulkAction func(orch *tasks.Orchestrator, ctx context.Context) (*tasks.BulkResult, error)

func (r *Runner) runBulkAction(ctx context.Context, cmd *cli.Command, action bulkAction) error {
	ids := cmd.StringSlice("id")
	all := cmd.Bool("all")
	if len(ids) == 0 && !all {
		return fmt.Errorf("%w: pass --id or --all", shared.ErrMissingArgument)
	}
	if len(ids) > 0 && all {
		return fmt.Errorf("%w: cannot combine --id and --all", shared.ErrInvalidArgument)
	}

	orch, cleanup, err := r.loadedOrchestrator(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if all {
		orch.Store().SelectAll()
	} else if n := orch.Store().SetSelected(ids); n < len(ids) {
		r.logger.Warn("ignoring tasks that are not awaiting review", "requested", len(ids), "selected", n)
	}

	result, err := action(orch, ctx)
	if err != nil {
		return err
	}
	return r.writePlain("%s", formatter.FormatBulkResult(result))
}

// TasksApplySelected approves the chosen tasks with their suggested values.
func (r *Runner) TasksApplySelected(ctx context.Context, cmd *cli.Command) error {
	return r.runBulkAction(ctx, cmd, (*tasks.Orchestrator).ApplySelected)
}

// TasksRetrySelected sends the chosen tasks back to the queue.
func (r *Runner) TasksRetrySelected(ctx context.Context, cmd *cli.Command) error {
	return r.runBulkAction(ctx, cmd, (*tasks.Orchestrator).RetrySelected)
}
