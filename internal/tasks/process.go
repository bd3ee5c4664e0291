package tasks

import (
	"context"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/shared"
)

// Strategy selects how [Orchestrator.ProcessBatch] reconciles the task list after work was done.
type Strategy int

const (
	// EagerRefresh runs one silent refresh as soon as tasks were processed. Failures are returned.
	EagerRefresh Strategy = iota
	// DebouncedRefresh marks updates as pending and lets the debounce refresh once activity settles.
	// Failures are only logged.
	DebouncedRefresh
)

func (s Strategy) String() string {
	switch s {
	case EagerRefresh:
		return "eager-refresh"
	case DebouncedRefresh:
		return "debounced-refresh"
	default:
		return ""
	}
}

// ProcessBatch asks the remote queue to advance up to limit tasks (the configured batch limit when limit <= 0).
//
// A call made while another batch is in flight returns (nil, nil) without contacting the service.
func (o *Orchestrator) ProcessBatch(ctx context.Context, limit int, strategy Strategy) (*models.ProcessResult, error) {
	if o.closed.Load() {
		return nil, shared.ErrClosed
	}
	if limit <= 0 {
		limit = o.opts.BatchLimit
	}
	if !o.processing.CompareAndSwap(false, true) {
		o.logger.Debug("batch already in flight, dropping call", "strategy", strategy)
		return nil, nil
	}

	background := strategy == DebouncedRefresh
	if background {
		defer o.processing.Store(false)
	} else {
		o.pauseDebounce()
		defer func() {
			o.processing.Store(false)
			o.resumeDebounce()
			o.publish(stateChangedUpdate())
		}()
		o.publish(stateChangedUpdate())
	}

	started := time.Now()
	result, err := o.svc.ProcessTasks(ctx, limit)
	if o.closed.Load() {
		return nil, nil
	}
	if err != nil {
		if background {
			o.logger.Warn("background processing failed", "err", err)
			return nil, nil
		}
		o.publish(errorUpdate("process", err))
		o.record(ctx, models.ActivitySummary{
			Kind:       models.ActivityProcess,
			Requested:  limit,
			Err:        err,
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		return nil, err
	}

	o.publish(processUpdate(result))
	if !background {
		o.record(ctx, models.ActivitySummary{
			Kind:        models.ActivityProcess,
			Requested:   limit,
			Processed:   result.Processed,
			Applied:     result.CoversApplied + result.MetadataApplied,
			NeedsReview: result.NeedsReview,
			Skipped:     result.Skipped,
			Failed:      result.Failed,
			StartedAt:   started,
			FinishedAt:  time.Now(),
		})
	}

	if result.Processed > 0 {
		switch strategy {
		case EagerRefresh:
			if _, err := o.refresh(ctx, true); err != nil {
				o.logger.Debug("refresh after batch skipped", "err", err)
			}
		case DebouncedRefresh:
			o.markUpdatesPending()
		}
	}
	if result.CoversApplied+result.MetadataApplied > 0 {
		o.publish(libraryUpdatedUpdate())
	}
	return result, nil
}

// markUpdatesPending sets the pending flag and (re)arms the refresh debounce.
func (o *Orchestrator) markUpdatesPending() {
	o.updatesPending.Store(true)
	o.armDebounce()
}

func (o *Orchestrator) armDebounce() {
	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()
	if o.debounced != nil && o.debouncePaused == 0 {
		o.debounced()
	}
}

// pauseDebounce holds the debounce off while a foreground operation runs.
// Every call must be paired with resumeDebounce.
func (o *Orchestrator) pauseDebounce() {
	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()
	o.debouncePaused++
	if o.cancelDebounce != nil {
		o.cancelDebounce()
	}
}

// resumeDebounce re-arms the debounce once the last foreground operation ended with updates still pending.
func (o *Orchestrator) resumeDebounce() {
	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()
	o.debouncePaused--
	if o.debouncePaused == 0 && o.debounced != nil && o.updatesPending.Load() {
		o.debounced()
	}
}

// requeueUpdates restores the pending flag and re-arms the debounce, unless the poller was
// stopped since gen was read.
func (o *Orchestrator) requeueUpdates(gen uint64) {
	o.debounceMu.Lock()
	defer o.debounceMu.Unlock()
	if gen != o.debounceGen || o.debounced == nil {
		return
	}
	o.updatesPending.Store(true)
	if o.debouncePaused == 0 {
		o.debounced()
	}
}

// flushPendingUpdates runs when the debounce fires. While a foreground operation is in flight,
// or when the refresh is dropped or outdated, the updates stay pending and the debounce is armed again.
func (o *Orchestrator) flushPendingUpdates() {
	o.debounceMu.Lock()
	gen := o.debounceGen
	o.debounceMu.Unlock()

	if o.closed.Load() || !o.updatesPending.Swap(false) {
		return
	}
	if o.foregroundBusy() {
		o.requeueUpdates(gen)
		return
	}

	ran, err := o.refresh(context.Background(), true)
	if err != nil || ran {
		return
	}
	o.requeueUpdates(gen)
}
