// Package repositories implements SQLite persistence for the local activity log.
//
// [ActivityRepository] implements models.Repository[*models.ActivityRecord] with atomic sequence generation
// and soft deletes via deleted_at timestamps; deleted records are excluded from queries.
//
// [ActivityLogAdapter] adapts the repository to tasks.ActivityRecorder so the orchestrator can record finished
// batch runs and bulk actions. Recording failures are logged and never reach the caller.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
