package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

func sampleTasks() []models.Task {
	confidence := 0.87
	lastError := "provider timeout"
	return []models.Task{
		{
			ID:              "t1",
			WorkID:          "w1",
			Status:          models.StatusNeedsReview,
			Confidence:      &confidence,
			MissingFields:   []string{"cover", "description"},
			SuggestedValues: map[string]any{"description": "A novel", "cover": "https://covers/1.jpg"},
		},
		{
			ID:            "t2",
			WorkID:        "w2",
			Status:        models.StatusFailed,
			MissingFields: []string{"cover"},
			LastError:     &lastError,
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("ParseFormat(%q) error = %v, want ErrInvalidArgument", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
			}
		})
	}
}

func TestExportTasks(t *testing.T) {
	t.Run("CSV", func(t *testing.T) {
		data, err := ExportTasks(sampleTasks(), FormatCSV)
		if err != nil {
			t.Fatalf("ExportTasks failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "ID,Work,Status,Confidence,Missing,Suggested,Applied,Error" {
			t.Errorf("CSV headers = %v", records[0])
		}
		if records[1][3] != "87%" {
			t.Errorf("confidence = %q, want 87%%", records[1][3])
		}
		if records[1][5] != "cover;description" {
			t.Errorf("suggested keys = %q, want sorted keys", records[1][5])
		}
		if records[2][3] != "-" || records[2][7] != "provider timeout" {
			t.Errorf("failed row = %v", records[2])
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := ExportTasks(sampleTasks(), FormatJSON)
		if err != nil {
			t.Fatalf("ExportTasks failed: %v", err)
		}

		var decoded []models.Task
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[0].Status != models.StatusNeedsReview {
			t.Errorf("decoded = %+v", decoded)
		}
	})

	t.Run("text", func(t *testing.T) {
		data, err := ExportTasks(sampleTasks(), FormatText)
		if err != nil {
			t.Fatalf("ExportTasks failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"ID", "Status", "t1", "needs_review", "t2", "failed", "cover;description"} {
			if !strings.Contains(output, want) {
				t.Errorf("text table missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("text without tasks", func(t *testing.T) {
		if got := string(ExportTasksToText(nil)); got != "No tasks.\n" {
			t.Errorf("ExportTasksToText(nil) = %q", got)
		}
	})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "-"},
		{"empty string", "", "-"},
		{"string", "Tor", "Tor"},
		{"whole float", float64(1999), "1999"},
		{"fraction", 4.5, "4.5"},
		{"bool", true, "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatValue(tt.in); got != tt.want {
				t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSummaries(t *testing.T) {
	t.Run("FormatCounts", func(t *testing.T) {
		got := FormatCounts(tasks.Counts{Pending: 2, InProgress: 2, NeedsReview: 1, Complete: 3, Completed: 4, Total: 8})
		if !strings.HasPrefix(got, "4/8 done (50%)") {
			t.Errorf("FormatCounts() = %q", got)
		}
		if !strings.Contains(got, "review 1") {
			t.Errorf("FormatCounts() missing review count: %q", got)
		}
	})

	t.Run("FormatProcessResult", func(t *testing.T) {
		if got := FormatProcessResult(nil); !strings.Contains(got, "skipped") {
			t.Errorf("FormatProcessResult(nil) = %q", got)
		}
		got := FormatProcessResult(&models.ProcessResult{Processed: 5, NeedsReview: 2, CoversApplied: 1, MetadataApplied: 1, Failed: 1})
		if !strings.HasPrefix(got, "Processed 5: 2 awaiting review") {
			t.Errorf("FormatProcessResult() = %q", got)
		}
	})

	t.Run("FormatBulkResult", func(t *testing.T) {
		result := &tasks.BulkResult{
			Kind:      models.ActivityBulkApply,
			Requested: 3,
			Applied:   1,
			Failed:    1,
			Skipped:   1,
			Items: []tasks.BulkItem{
				{TaskID: "a", Outcome: tasks.OutcomeApplied},
				{TaskID: "b", Outcome: tasks.OutcomeSkipped},
				{TaskID: "c", Outcome: tasks.OutcomeFailed, Err: &services.APIError{StatusCode: http.StatusConflict, Message: "task already resolved"}},
			},
		}

		got := FormatBulkResult(result)
		if !strings.HasPrefix(got, "Applied 1 of 3, 1 skipped (no suggestions), 1 failed.") {
			t.Errorf("FormatBulkResult() = %q", got)
		}
		if !strings.Contains(got, "  c: task already resolved") {
			t.Errorf("FormatBulkResult() missing failure line: %q", got)
		}

		retry := &tasks.BulkResult{Kind: models.ActivityBulkRetry, Requested: 2, Applied: 2}
		if got := FormatBulkResult(retry); got != "Retried 2 of 2.\n" {
			t.Errorf("FormatBulkResult(retry) = %q", got)
		}
	})
}

func TestExportReview(t *testing.T) {
	t.Run("ExportSources", func(t *testing.T) {
		tiles := []models.SourceTile{
			{Provider: "openlibrary", SourceID: "OL1M", Title: "Dune", Year: 1965},
			{Provider: "google", SourceID: "g7", Title: "Dune (reissue)"},
		}
		cached := func(tile models.SourceTile) bool { return tile.SourceID == "OL1M" }

		data, err := ExportSources(tiles, cached, FormatText)
		if err != nil {
			t.Fatalf("ExportSources failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"openlibrary", "OL1M", "1965", "yes", "g7", "no"} {
			if !strings.Contains(output, want) {
				t.Errorf("sources table missing %q, got:\n%s", want, output)
			}
		}

		empty, _ := ExportSources(nil, nil, FormatText)
		if string(empty) != "No sources found.\n" {
			t.Errorf("empty sources = %q", empty)
		}
	})

	t.Run("ExportCompare", func(t *testing.T) {
		fields := []models.CompareField{
			{FieldKey: "cover", Label: "Cover", CurrentValue: nil, CandidateValue: "https://c/1.jpg", CandidateAvailable: true, Provider: "openlibrary"},
			{FieldKey: "edition.publisher", CurrentValue: "Tor", Provider: "openlibrary"},
		}

		data, err := ExportCompare(fields, FormatText)
		if err != nil {
			t.Fatalf("ExportCompare failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"Cover", "https://c/1.jpg", "selected", "edition.publisher", "Tor", "current"} {
			if !strings.Contains(output, want) {
				t.Errorf("compare table missing %q, got:\n%s", want, output)
			}
		}

		data, err = ExportCompare(fields, FormatJSON)
		if err != nil {
			t.Fatalf("ExportCompare(JSON) failed: %v", err)
		}
		var decoded []models.CompareField
		if err := json.Unmarshal(data, &decoded); err != nil || len(decoded) != 2 {
			t.Errorf("compare JSON = %s, %v", data, err)
		}
	})
}

func TestExportHistory(t *testing.T) {
	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	record := models.NewActivityRecord(7, models.ActivitySummary{
		Kind:       models.ActivityBulkApply,
		TaskIDs:    []string{"a", "b"},
		Requested:  2,
		Applied:    1,
		Failed:     1,
		Err:        errors.New("b: conflict"),
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
	})

	t.Run("text", func(t *testing.T) {
		data, err := ExportHistory([]*models.ActivityRecord{record}, FormatText)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}
		output := string(data)
		for _, want := range []string{"#7", "bulk_apply", "1.5s", "b: conflict"} {
			if !strings.Contains(output, want) {
				t.Errorf("history table missing %q, got:\n%s", want, output)
			}
		}

		empty, _ := ExportHistory(nil, FormatText)
		if string(empty) != "No activity recorded.\n" {
			t.Errorf("empty history = %q", empty)
		}
	})

	t.Run("CSV", func(t *testing.T) {
		data, err := ExportHistory([]*models.ActivityRecord{record}, FormatCSV)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}
		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil || len(records) != 2 {
			t.Fatalf("history CSV = %v, %v", records, err)
		}
		if records[1][0] != "#7" || records[1][6] != "1" || records[1][10] != "b: conflict" {
			t.Errorf("history row = %v", records[1])
		}
	})

	t.Run("JSON", func(t *testing.T) {
		data, err := ExportHistory([]*models.ActivityRecord{record}, FormatJSON)
		if err != nil {
			t.Fatalf("ExportHistory failed: %v", err)
		}
		var decoded []map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("history JSON invalid: %v", err)
		}
		if len(decoded) != 1 || decoded[0]["run"] != float64(7) || decoded[0]["kind"] != "bulk_apply" {
			t.Errorf("decoded = %v", decoded)
		}
	})
}
