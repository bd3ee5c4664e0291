package models

import (
	"fmt"
	"slices"
	"time"
)

// TaskStatus represents the processing state of an enrichment task.
type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusInProgress  TaskStatus = "in_progress"
	StatusNeedsReview TaskStatus = "needs_review"
	StatusComplete    TaskStatus = "complete"
	StatusSkipped     TaskStatus = "skipped"
	StatusFailed      TaskStatus = "failed"
)

// Statuses lists every status in display order.
var Statuses = []TaskStatus{
	StatusPending,
	StatusInProgress,
	StatusNeedsReview,
	StatusComplete,
	StatusSkipped,
	StatusFailed,
}

func (s TaskStatus) IsValid() bool {
	return slices.Contains(Statuses, s)
}

// IsQueued reports whether the remote queue still has work to do for a task in s.
func (s TaskStatus) IsQueued() bool {
	return s == StatusPending || s == StatusInProgress
}

var transitions = map[TaskStatus][]TaskStatus{
	StatusPending:     {StatusInProgress},
	StatusInProgress:  {StatusNeedsReview, StatusComplete, StatusSkipped, StatusFailed},
	StatusNeedsReview: {StatusComplete, StatusSkipped, StatusPending},
	StatusFailed:      {StatusPending},
	StatusSkipped:     {StatusPending},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	return slices.Contains(transitions[from], to)
}

// Action is a user-triggered operation on a single task.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionDismiss  Action = "dismiss"
	ActionRetry    Action = "retry"
	ActionRetryNow Action = "retry-now"
)

// Allows reports whether action is valid for a task currently in status s.
//
// retry-now is a synchronous retry: the server may answer with any state, so it is
// allowed from every status a plain retry is.
func (a Action) Allows(s TaskStatus) bool {
	switch a {
	case ActionApprove, ActionDismiss:
		return s == StatusNeedsReview
	case ActionRetry, ActionRetryNow:
		return CanTransition(s, StatusPending)
	default:
		return false
	}
}

// Task identifies one library item's enrichment attempt.
type Task struct {
	ID                string         `json:"id"`
	LibraryItemID     string         `json:"library_item_id"`
	WorkID            string         `json:"work_id"`
	EditionID         string         `json:"edition_id,omitempty"`
	Status            TaskStatus     `json:"status"`
	Confidence        *float64       `json:"confidence"`
	MissingFields     []string       `json:"missing_fields"`
	FieldsApplied     []string       `json:"fields_applied"`
	SuggestedValues   map[string]any `json:"suggested_values"`
	MatchedProvider   string         `json:"matched_provider,omitempty"`
	MatchedProviderID string         `json:"matched_provider_id,omitempty"`
	LastError         *string        `json:"last_error"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	FinishedAt        *time.Time     `json:"finished_at"`
}

// Validate checks the invariants a task received from the server must hold.
func (t Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("task id is required")
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}
	if len(t.FieldsApplied) > 0 && t.Status != StatusComplete {
		return fmt.Errorf("task %s: fields applied while status is %s", t.ID, t.Status)
	}
	return nil
}

// HasSuggestedMetadata reports whether t carries at least one suggested value.
func HasSuggestedMetadata(t Task) bool {
	return len(t.SuggestedValues) > 0
}

// SuggestedSelections turns the task's suggested values into approve selections, sorted by field key.
func (t Task) SuggestedSelections() []FieldSelection {
	keys := make([]string, 0, len(t.SuggestedValues))
	for k := range t.SuggestedValues {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	selections := make([]FieldSelection, 0, len(keys))
	for _, k := range keys {
		selections = append(selections, FieldSelection{
			FieldKey:   k,
			Provider:   t.MatchedProvider,
			ProviderID: t.MatchedProviderID,
			Value:      t.SuggestedValues[k],
		})
	}
	return selections
}

// Clone returns a deep copy of t so callers cannot mutate store-owned slices and maps.
func (t Task) Clone() Task {
	c := t
	c.MissingFields = slices.Clone(t.MissingFields)
	c.FieldsApplied = slices.Clone(t.FieldsApplied)
	if t.SuggestedValues != nil {
		c.SuggestedValues = make(map[string]any, len(t.SuggestedValues))
		for k, v := range t.SuggestedValues {
			c.SuggestedValues[k] = v
		}
	}
	if t.Confidence != nil {
		v := *t.Confidence
		c.Confidence = &v
	}
	if t.LastError != nil {
		v := *t.LastError
		c.LastError = &v
	}
	if t.FinishedAt != nil {
		v := *t.FinishedAt
		c.FinishedAt = &v
	}
	return c
}

// TaskPage is one page of the cursor-paginated task list.
type TaskPage struct {
	Items      []Task  `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

// HasNext reports whether another page follows.
func (p TaskPage) HasNext() bool {
	return p.NextCursor != nil && *p.NextCursor != ""
}

// ProcessResult holds the counts returned by the "process next N tasks" endpoint.
type ProcessResult struct {
	Processed       int `json:"processed"`
	CoversApplied   int `json:"covers_applied"`
	MetadataApplied int `json:"metadata_applied"`
	NeedsReview     int `json:"needs_review"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
	Limit           int `json:"limit"`
}
