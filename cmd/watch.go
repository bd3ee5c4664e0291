package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Watch runs the poller until interrupted, logging every update.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := cmd.Duration("interval")
	orch, cleanup, err := r.newOrchestrator(func(o *tasks.Options) {
		if interval > 0 {
			o.PollInterval = interval
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	updates, unsubscribe := orch.Subscribe(32)
	defer unsubscribe()

	if err := orch.Refresh(ctx, false); err != nil {
		return err
	}
	counts := orch.Snapshot().Counts
	if interval <= 0 {
		interval = r.config.Enrichment.PollInterval()
	}
	r.logger.Info("watching queue", "interval", interval, "pending", counts.Pending, "in_progress", counts.InProgress)

	orch.StartPolling()
	defer orch.StopPolling()

	return r.watchUpdates(ctx, orch, updates)
}

func (r *Runner) watchUpdates(ctx context.Context, orch *tasks.Orchestrator, updates <-chan tasks.Update) error {
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopped watching", "counts", formatter.FormatCounts(orch.Snapshot().Counts))
			return nil
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			r.logUpdate(u)
		}
	}
}

func (r *Runner) logUpdate(u tasks.Update) {
	switch u.Phase {
	case tasks.PhaseError:
		r.logger.Warn(u.Message, "phase", u.Phase, "error", u.Err)
	case tasks.PhaseStateChanged:
		r.logger.Debug("state changed")
	default:
		if u.Total > 0 {
			r.logger.Info(u.Message, "phase", u.Phase, "step", fmt.Sprintf("%d/%d", u.Step, u.Total))
			return
		}
		r.logger.Info(u.Message, "phase", u.Phase)
	}
}
