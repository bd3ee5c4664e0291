package tasks

import (
	"context"
	"time"
)

// StartPolling starts the background poller. Calling it while the poller runs is a no-op.
//
// Every poll interval the poller processes one task with [DebouncedRefresh] when
// [Orchestrator.PollEligible] holds. The timer is re-armed only after a tick returns.
func (o *Orchestrator) StartPolling() {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	if o.pollStop != nil || o.closed.Load() {
		return
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	o.pollStop, o.pollDone = stop, done
	go o.pollLoop(stop, done)
	o.logger.Debug("poller started", "interval", o.opts.PollInterval)
}

// StopPolling stops the poller, waits for a running tick and drops a pending debounced refresh.
func (o *Orchestrator) StopPolling() {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	if o.pollStop == nil {
		return
	}

	close(o.pollStop)
	<-o.pollDone
	o.pollStop, o.pollDone = nil, nil

	o.debounceMu.Lock()
	if o.debounced != nil {
		o.cancelDebounce()
	}
	o.debounceGen++
	o.updatesPending.Store(false)
	o.debounceMu.Unlock()
	o.logger.Debug("poller stopped")
}

// Polling reports whether the poller is running.
func (o *Orchestrator) Polling() bool {
	o.pollMu.Lock()
	defer o.pollMu.Unlock()
	return o.pollStop != nil
}

func (o *Orchestrator) pollLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(o.opts.PollInterval)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-timer.C:
			o.Tick(context.Background())

			select {
			case <-stop:
				return
			default:
			}
			timer.Reset(o.opts.PollInterval)
		}
	}
}

// PollEligible reports whether a poll tick may process work: nothing is refreshing, processing
// or running as a single or bulk action, the view is visible and tasks are pending or in progress.
func (o *Orchestrator) PollEligible() bool {
	if o.closed.Load() || !o.visible.Load() || o.foregroundBusy() {
		return false
	}
	return o.store.Counts().Active() > 0
}

// Tick runs one poll tick and reports whether it processed a batch.
func (o *Orchestrator) Tick(ctx context.Context) bool {
	if !o.PollEligible() {
		o.logger.Debug("poll tick skipped")
		return false
	}
	if _, err := o.ProcessBatch(ctx, 1, DebouncedRefresh); err != nil {
		o.logger.Debug("poll tick", "err", err)
	}
	return true
}
