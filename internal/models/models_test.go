package models

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tc := []struct {
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusComplete, false},
		{StatusInProgress, StatusNeedsReview, true},
		{StatusInProgress, StatusComplete, true},
		{StatusInProgress, StatusSkipped, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusPending, false},
		{StatusNeedsReview, StatusComplete, true},
		{StatusNeedsReview, StatusSkipped, true},
		{StatusNeedsReview, StatusPending, true},
		{StatusNeedsReview, StatusFailed, false},
		{StatusFailed, StatusPending, true},
		{StatusFailed, StatusComplete, false},
		{StatusSkipped, StatusPending, true},
		{StatusComplete, StatusPending, false},
	}

	for _, tt := range tc {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestActionAllows(t *testing.T) {
	tc := []struct {
		name   string
		action Action
		status TaskStatus
		want   bool
	}{
		{"approve needs_review", ActionApprove, StatusNeedsReview, true},
		{"approve pending", ActionApprove, StatusPending, false},
		{"dismiss needs_review", ActionDismiss, StatusNeedsReview, true},
		{"dismiss failed", ActionDismiss, StatusFailed, false},
		{"retry failed", ActionRetry, StatusFailed, true},
		{"retry skipped", ActionRetry, StatusSkipped, true},
		{"retry needs_review", ActionRetry, StatusNeedsReview, true},
		{"retry complete", ActionRetry, StatusComplete, false},
		{"retry-now failed", ActionRetryNow, StatusFailed, true},
		{"retry-now in_progress", ActionRetryNow, StatusInProgress, false},
		{"unknown action", Action("explode"), StatusNeedsReview, false},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.action.Allows(tt.status); got != tt.want {
				t.Errorf("%s.Allows(%s) = %v, want %v", tt.action, tt.status, got, tt.want)
			}
		})
	}
}

func TestTaskStatus(t *testing.T) {
	if TaskStatus("unknown").IsValid() {
		t.Error("unknown status should be invalid")
	}
	for _, s := range Statuses {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range Statuses {
		want := s == StatusPending || s == StatusInProgress
		if got := s.IsQueued(); got != want {
			t.Errorf("%s.IsQueued() = %v, want %v", s, got, want)
		}
	}
}

func TestTask(t *testing.T) {
	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			task    Task
			wantErr bool
		}{
			{name: "valid pending", task: Task{ID: "t1", Status: StatusPending}},
			{name: "complete with applied fields", task: Task{ID: "t1", Status: StatusComplete, FieldsApplied: []string{"edition.publisher"}}},
			{name: "missing id", task: Task{Status: StatusPending}, wantErr: true},
			{name: "unknown status", task: Task{ID: "t1", Status: "lost"}, wantErr: true},
			{name: "applied fields outside complete", task: Task{ID: "t1", Status: StatusNeedsReview, FieldsApplied: []string{"cover"}}, wantErr: true},
		}
		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.task.Validate()
				if (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("HasSuggestedMetadata", func(t *testing.T) {
		if HasSuggestedMetadata(Task{ID: "t1", SuggestedValues: map[string]any{}}) {
			t.Error("empty suggested values should not count")
		}
		if !HasSuggestedMetadata(Task{ID: "t1", SuggestedValues: map[string]any{"cover": "x"}}) {
			t.Error("expected suggestions")
		}
	})

	t.Run("SuggestedSelections", func(t *testing.T) {
		task := Task{
			ID:                "t1",
			MatchedProvider:   "openlibrary",
			MatchedProviderID: "OL1M",
			SuggestedValues:   map[string]any{"edition.publisher": "Tor", "cover": "https://img"},
		}
		got := task.SuggestedSelections()
		if len(got) != 2 {
			t.Fatalf("expected 2 selections, got %d", len(got))
		}
		if got[0].FieldKey != "cover" || got[1].FieldKey != "edition.publisher" {
			t.Errorf("selections should be sorted by field key, got %s, %s", got[0].FieldKey, got[1].FieldKey)
		}
		if got[1].Provider != "openlibrary" || got[1].ProviderID != "OL1M" || got[1].Value != "Tor" {
			t.Errorf("unexpected selection %+v", got[1])
		}
	})

	t.Run("Clone is deep", func(t *testing.T) {
		msg := "boom"
		orig := Task{ID: "t1", MissingFields: []string{"cover"}, SuggestedValues: map[string]any{"cover": "a"}, LastError: &msg}
		c := orig.Clone()
		c.MissingFields[0] = "changed"
		c.SuggestedValues["cover"] = "b"
		*c.LastError = "changed"

		if orig.MissingFields[0] != "cover" || orig.SuggestedValues["cover"] != "a" || *orig.LastError != "boom" {
			t.Error("mutating the clone changed the original")
		}
	})

	t.Run("TaskPage HasNext", func(t *testing.T) {
		empty := ""
		next := "c2"
		if (TaskPage{}).HasNext() || (TaskPage{NextCursor: &empty}).HasNext() {
			t.Error("nil or empty cursor means last page")
		}
		if !(TaskPage{NextCursor: &next}).HasNext() {
			t.Error("expected another page")
		}
	})
}

func TestCompare(t *testing.T) {
	t.Run("CompareKey String", func(t *testing.T) {
		key := NewCompareKey("w1", SourceTile{Provider: "google", SourceID: "g7"})
		if got := key.String(); got != "w1|google|g7|" {
			t.Errorf("String() = %q", got)
		}
		key.EditionID = "e3"
		if got := key.String(); got != "w1|google|g7|e3" {
			t.Errorf("String() = %q", got)
		}
	})

	t.Run("DefaultChoice", func(t *testing.T) {
		if DefaultChoice(CompareField{CandidateAvailable: true}) != ChoiceSelected {
			t.Error("available candidate should default to selected")
		}
		if DefaultChoice(CompareField{}) != ChoiceCurrent {
			t.Error("missing candidate should default to current")
		}
	})

	t.Run("PrefetchKey", func(t *testing.T) {
		if got := (SourceTile{Provider: "openlibrary", SourceID: "OL1M"}).PrefetchKey(); got != "openlibrary:OL1M" {
			t.Errorf("PrefetchKey() = %q", got)
		}
	})
}

func TestActivityRecord(t *testing.T) {
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	t.Run("Validate", func(t *testing.T) {
		r := NewActivityRecord(1, ActivitySummary{Kind: ActivityBulkApply, StartedAt: start, FinishedAt: start.Add(time.Second)})
		if err := r.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}

		bad := NewActivityRecord(1, ActivitySummary{Kind: "other", StartedAt: start, FinishedAt: start})
		if err := bad.Validate(); err == nil {
			t.Error("expected error for unknown kind")
		}

		backwards := NewActivityRecord(1, ActivitySummary{Kind: ActivityProcess, StartedAt: start, FinishedAt: start.Add(-time.Second)})
		if err := backwards.Validate(); err == nil {
			t.Error("expected error when finished before started")
		}
	})

	t.Run("error message and ids", func(t *testing.T) {
		r := NewActivityRecord(2, ActivitySummary{
			Kind:       ActivityBulkRetry,
			TaskIDs:    []string{"a", "b"},
			Err:        errors.New("partial failure"),
			StartedAt:  start,
			FinishedAt: start.Add(2 * time.Second),
		})
		if r.ErrorMessage() != "partial failure" {
			t.Errorf("ErrorMessage() = %q", r.ErrorMessage())
		}
		if r.JoinedTaskIDs() != "a,b" {
			t.Errorf("JoinedTaskIDs() = %q", r.JoinedTaskIDs())
		}
		if got := SplitTaskIDs(r.JoinedTaskIDs()); len(got) != 2 {
			t.Errorf("SplitTaskIDs() = %v", got)
		}
		if SplitTaskIDs("") != nil {
			t.Error("empty string should split to nil")
		}
		if r.Duration() != 2*time.Second {
			t.Errorf("Duration() = %v", r.Duration())
		}
	})
}
