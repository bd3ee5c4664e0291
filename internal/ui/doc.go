// Package ui implements the terminal review queue using bubbletea's Elm architecture.
//
// The [Model] renders the orchestrator's task list grouped by status with the queue counts,
// and dispatches user intents (select, bulk apply/retry, process a batch, one-click approve,
// dismiss, refresh) back to it. Orchestrator updates arrive through a subscription channel and
// are turned into messages of the Msg union type.
//
// Terminal focus drives visibility: a blurred terminal pauses background polling.
// Per-task keys are ignored for tasks that a running bulk action owns.
package ui
