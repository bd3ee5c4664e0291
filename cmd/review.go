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

// openReview loads the task list and opens a review session for --task.
func (r *Runner) openReview(ctx context.Context, cmd *cli.Command, query models.SourceQuery) (*tasks.Orchestrator, *tasks.ReviewSession, func(), error) {
	taskID := cmd.String("task")
	if taskID == "" {
		return nil, nil, nil, fmt.Errorf("%w: --task", shared.ErrMissingArgument)
	}

	orch, cleanup, err := r.loadedOrchestrator(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	session, err := orch.OpenReview(ctx, taskID, query)
	if err != nil {
		cleanup()
		return nil, nil, nil, fmt.Errorf("review %s: %w", taskID, err)
	}
	return orch, session, func() {
		session.Close()
		cleanup()
	}, nil
}

// selectSource finds the tile named by --provider/--source/--edition and loads its comparison.
//
// A tile the listing did not return is still compared; the API decides whether it exists.
func selectSource(ctx context.Context, cmd *cli.Command, session *tasks.ReviewSession) ([]models.CompareField, error) {
	want := models.SourceTile{
		Provider:  cmd.String("provider"),
		SourceID:  cmd.String("source"),
		EditionID: cmd.String("edition"),
	}
	if want.Provider == "" || want.SourceID == "" {
		return nil, fmt.Errorf("%w: --provider and --source", shared.ErrMissingArgument)
	}

	tile := want
	for _, t := range session.Sources() {
		if t.Provider != want.Provider || t.SourceID != want.SourceID {
			continue
		}
		if want.EditionID == "" || t.EditionID == want.EditionID {
			tile = t
			break
		}
	}
	return session.Select(ctx, tile)
}

// ReviewSources lists the candidate sources of a task, marking those with a cached comparison.
func (r *Runner) ReviewSources(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	query := models.SourceQuery{
		Languages: cmd.StringSlice("language"),
		Title:     cmd.String("title"),
	}
	orch, session, cleanup, err := r.openReview(ctx, cmd, query)
	if err != nil {
		return err
	}
	defer cleanup()

	workID := session.Task().WorkID
	cached := func(tile models.SourceTile) bool {
		_, ok := orch.Cache().Get(models.NewCompareKey(workID, tile))
		return ok
	}

	data, err := formatter.ExportSources(session.Sources(), cached, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// ReviewCompare compares one source against the task's current values.
func (r *Runner) ReviewCompare(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	_, session, cleanup, err := r.openReview(ctx, cmd, models.SourceQuery{})
	if err != nil {
		return err
	}
	defer cleanup()

	fields, err := selectSource(ctx, cmd, session)
	if err != nil {
		return err
	}

	data, err := formatter.ExportCompare(fields, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}

// ReviewApply approves a task with the candidate values of one source, except the --keep fields.
func (r *Runner) ReviewApply(ctx context.Context, cmd *cli.Command) error {
	_, session, cleanup, err := r.openReview(ctx, cmd, models.SourceQuery{})
	if err != nil {
		return err
	}
	defer cleanup()

	if _, err := selectSource(ctx, cmd, session); err != nil {
		return err
	}
	for _, field := range cmd.StringSlice("keep") {
		if err := session.Choose(field, models.ChoiceCurrent); err != nil {
			return err
		}
	}

	selections := session.Selections()
	if len(selections) == 0 {
		return fmt.Errorf("%w: every field is kept at its current value", shared.ErrNoSelections)
	}

	task, err := session.Apply(ctx)
	if err != nil {
		return fmt.Errorf("approve %s: %w", session.Task().ID, err)
	}
	r.logger.Debug("review applied", "task", task.ID, "fields", len(selections))

	return r.writePlain("✓ approve %s → %s (%d fields)\n", task.ID, task.Status, len(selections))
}
