package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/repositories"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/urfave/cli/v3"
)

// History prints recent runs from the activity log, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := outputFormat(cmd)
	if err != nil {
		return err
	}

	criteria := map[string]any{"newest": true}
	if limit := cmd.Int("limit"); limit > 0 {
		criteria["limit"] = int(limit)
	}
	if kind := models.ActivityKind(cmd.String("kind")); kind != "" {
		if !kind.IsValid() {
			return fmt.Errorf("%w: unknown kind %q", shared.ErrInvalidFlag, kind)
		}
		criteria["kind"] = kind
	}

	db, err := r.openDatabase()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	records, err := repositories.NewActivityRepository(db).List(criteria)
	if err != nil {
		return err
	}

	data, err := formatter.ExportHistory(records, format)
	if err != nil {
		return err
	}
	return r.writeBytes(data)
}
