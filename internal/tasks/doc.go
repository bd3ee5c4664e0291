// Package tasks keeps a local list of enrichment tasks in sync with the remote task queue.
//
// # Orchestrator
//
// [Orchestrator] owns the [Store], the [CompareCache], the busy flags and the background poller.
// It is created with [New] and torn down with [Orchestrator.Close]; several instances never share state.
//
//   - [Orchestrator.Refresh] pages through the remote list and swaps the store contents in one step
//   - [Orchestrator.ProcessBatch] advances up to N tasks and reconciles with [EagerRefresh] or [DebouncedRefresh]
//   - [Orchestrator.ApplySelected] and [Orchestrator.RetrySelected] run sequentially over the selection
//   - single-task actions ([Orchestrator.ApproveSuggested], [Orchestrator.Approve], [Orchestrator.Dismiss],
//     [Orchestrator.Retry], [Orchestrator.RetryNow]) validate locally before calling the service
//   - [Orchestrator.OpenReview] starts a [ReviewSession] for choosing a match field by field
//
// # Busy Flags
//
// Refresh and batch processing drop a call made while the previous one is in flight; they never queue.
// A second bulk action fails with [shared.ErrBusy], as does a second action on the same task.
//
// # Polling
//
// [Orchestrator.StartPolling] runs a single timer. Each tick processes one task when nothing else is in
// flight, the view is visible ([Orchestrator.SetVisible]) and tasks are pending or in progress.
// Processed work is reconciled by one debounced silent refresh.
//
// # Updates
//
// [Orchestrator.Subscribe] returns a channel of [Update]. Publishing never blocks: updates are dropped
// for subscribers whose buffer is full.
package tasks
