package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Refresh loads the full task list and replaces the store contents.
//
// A call made while another refresh is in flight returns nil without fetching.
// A silent refresh does not set the loading flag and only logs failures; a foreground refresh
// publishes and returns them. The store is never replaced with a partial list.
func (o *Orchestrator) Refresh(ctx context.Context, silent bool) error {
	_, err := o.refresh(ctx, silent)
	return err
}

// refresh reports whether the call ran. It did not when another refresh was in flight, or when
// a silent refresh found that a task result was applied while it was fetching.
func (o *Orchestrator) refresh(ctx context.Context, silent bool) (bool, error) {
	if o.closed.Load() {
		return false, shared.ErrClosed
	}
	if !o.refreshing.CompareAndSwap(false, true) {
		o.logger.Debug("refresh already in flight, dropping call", "silent", silent)
		return false, nil
	}
	defer o.refreshing.Store(false)

	if !silent {
		o.loading.Store(true)
		o.publish(stateChangedUpdate())
		defer func() {
			o.loading.Store(false)
			o.publish(stateChangedUpdate())
		}()
	}

	version := o.store.Version()
	tasks, err := o.fetchAll(ctx)
	if o.closed.Load() {
		return true, nil
	}
	if err != nil {
		if silent {
			o.logger.Warn("background refresh failed", "err", err)
			return true, nil
		}
		o.publish(errorUpdate("refresh", err))
		return true, err
	}

	if silent {
		if !o.store.ReplaceAllIfUnchanged(tasks, version) {
			o.logger.Debug("discarding outdated background refresh")
			return false, nil
		}
	} else {
		o.store.ReplaceAll(tasks)
	}
	o.publish(refreshUpdate(len(tasks)))
	o.logger.Debug("tasks refreshed", "count", len(tasks))
	return true, nil
}

// fetchAll follows next_cursor until the last page.
func (o *Orchestrator) fetchAll(ctx context.Context) ([]models.Task, error) {
	var (
		tasks  []models.Task
		cursor string
		seen   = make(map[string]struct{})
	)
	for {
		page, err := o.svc.ListTasks(ctx, cursor, o.opts.PageSize)
		if err != nil {
			return nil, err
		}
		for _, task := range page.Items {
			if err := task.Validate(); err != nil {
				return nil, fmt.Errorf("%w: task list: %w", shared.ErrDecodeResponse, err)
			}
		}
		tasks = append(tasks, page.Items...)
		if !page.HasNext() {
			return tasks, nil
		}

		cursor = *page.NextCursor
		if _, dup := seen[cursor]; dup {
			return nil, fmt.Errorf("%w: task list cursor %q repeated", shared.ErrAPIRequest, cursor)
		}
		seen[cursor] = struct{}{}
	}
}
