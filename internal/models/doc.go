// Package models defines domain entities for the shelfx enrichment orchestrator.
//
// The package contains two categories of types:
//
// 1. Wire types mirroring the remote library API:
//   - [Task] : one library item's cover/metadata enrichment attempt
//   - [TaskPage] : one cursor page of the task list
//   - [ProcessResult] : counts returned by the "process next N tasks" endpoint
//   - [SourceTile], [CompareField], [FieldSelection] : review dialog payloads
//
// 2. Persistent entities stored locally in sqlite:
//   - [ActivityRecord] : summary of a foreground batch run or a bulk action
//
// Task status changes follow the state machine in [CanTransition].
// Persistent entities implement [Model]; [Repository] defines standard CRUD operations for them.
package models
