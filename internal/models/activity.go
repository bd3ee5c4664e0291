package models

import (
	"fmt"
	"strings"
	"time"
)

// ActivityKind names the operation an [ActivityRecord] summarizes.
type ActivityKind string

const (
	ActivityProcess    ActivityKind = "process"
	ActivityBulkApply  ActivityKind = "bulk_apply"
	ActivityBulkRetry  ActivityKind = "bulk_retry"
	ActivityTaskAction ActivityKind = "task_action"
)

func (k ActivityKind) IsValid() bool {
	switch k {
	case ActivityProcess, ActivityBulkApply, ActivityBulkRetry, ActivityTaskAction:
		return true
	}
	return false
}

// ActivitySummary carries the counts of one finished run.
type ActivitySummary struct {
	Kind        ActivityKind
	TaskIDs     []string
	Requested   int
	Processed   int
	Applied     int
	Failed      int
	Skipped     int
	NeedsReview int
	Err         error
	StartedAt   time.Time
	FinishedAt  time.Time
}

// ActivityRecord is the persisted form of an [ActivitySummary].
type ActivityRecord struct {
	id           string
	sequence     int
	summary      ActivitySummary
	errorMessage string
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
}

var _ Model = (*ActivityRecord)(nil)

// NewActivityRecord creates an unsaved record for the given summary.
func NewActivityRecord(sequence int, summary ActivitySummary) *ActivityRecord {
	now := time.Now()
	r := &ActivityRecord{
		sequence:  sequence,
		summary:   summary,
		createdAt: now,
		updatedAt: now,
	}
	if summary.Err != nil {
		r.errorMessage = summary.Err.Error()
	}
	return r
}

func (r *ActivityRecord) ID() string               { return r.id }
func (r *ActivityRecord) Sequence() int            { return r.sequence }
func (r *ActivityRecord) Kind() ActivityKind       { return r.summary.Kind }
func (r *ActivityRecord) TaskIDs() []string        { return r.summary.TaskIDs }
func (r *ActivityRecord) Requested() int           { return r.summary.Requested }
func (r *ActivityRecord) Processed() int           { return r.summary.Processed }
func (r *ActivityRecord) Applied() int             { return r.summary.Applied }
func (r *ActivityRecord) Failed() int              { return r.summary.Failed }
func (r *ActivityRecord) Skipped() int             { return r.summary.Skipped }
func (r *ActivityRecord) NeedsReview() int         { return r.summary.NeedsReview }
func (r *ActivityRecord) ErrorMessage() string     { return r.errorMessage }
func (r *ActivityRecord) StartedAt() time.Time     { return r.summary.StartedAt }
func (r *ActivityRecord) FinishedAt() time.Time    { return r.summary.FinishedAt }
func (r *ActivityRecord) CreatedAt() time.Time     { return r.createdAt }
func (r *ActivityRecord) UpdatedAt() time.Time     { return r.updatedAt }
func (r *ActivityRecord) DeletedAt() *time.Time    { return r.deletedAt }
func (r *ActivityRecord) Summary() ActivitySummary { return r.summary }

func (r *ActivityRecord) SetID(id string)              { r.id = id }
func (r *ActivityRecord) SetSequence(seq int)          { r.sequence = seq }
func (r *ActivityRecord) SetErrorMessage(msg string)   { r.errorMessage = msg }
func (r *ActivityRecord) SetCreatedAt(t time.Time)     { r.createdAt = t }
func (r *ActivityRecord) SetUpdatedAt(t time.Time)     { r.updatedAt = t }
func (r *ActivityRecord) SetDeletedAt(t *time.Time)    { r.deletedAt = t }
func (r *ActivityRecord) SetTaskIDs(ids []string)      { r.summary.TaskIDs = ids }
func (r *ActivityRecord) SetSummary(s ActivitySummary) { r.summary = s }

// Duration is how long the run took.
func (r *ActivityRecord) Duration() time.Duration {
	return r.summary.FinishedAt.Sub(r.summary.StartedAt)
}

// JoinedTaskIDs renders the task ids for storage.
func (r *ActivityRecord) JoinedTaskIDs() string {
	return strings.Join(r.summary.TaskIDs, ",")
}

// SplitTaskIDs parses ids stored by [ActivityRecord.JoinedTaskIDs].
func SplitTaskIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// Validate checks that the record can be persisted.
func (r *ActivityRecord) Validate() error {
	if !r.summary.Kind.IsValid() {
		return fmt.Errorf("invalid activity kind %q", r.summary.Kind)
	}
	if r.summary.StartedAt.IsZero() || r.summary.FinishedAt.IsZero() {
		return fmt.Errorf("activity start and finish times are required")
	}
	if r.summary.FinishedAt.Before(r.summary.StartedAt) {
		return fmt.Errorf("activity finished before it started")
	}
	if r.summary.Applied < 0 || r.summary.Failed < 0 || r.summary.Skipped < 0 || r.summary.Processed < 0 {
		return fmt.Errorf("activity counts cannot be negative")
	}
	return nil
}
