// package formatter renders tasks, comparisons, bulk results and the activity log as text, JSON or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/services"
	"github.com/desertthunder/shelfx/internal/shared"
	"github.com/desertthunder/shelfx/internal/tasks"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a flag value to a Format, defaulting to text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

var taskHeaders = []string{"ID", "Work", "Status", "Confidence", "Missing", "Suggested", "Applied", "Error"}

func taskRow(t models.Task) []string {
	lastError := ""
	if t.LastError != nil {
		lastError = *t.LastError
	}
	return []string{
		t.ID,
		t.WorkID,
		string(t.Status),
		FormatConfidence(t.Confidence),
		strings.Join(t.MissingFields, ";"),
		strings.Join(suggestedKeys(t), ";"),
		strings.Join(t.FieldsApplied, ";"),
		lastError,
	}
}

func suggestedKeys(t models.Task) []string {
	selections := t.SuggestedSelections()
	keys := make([]string, len(selections))
	for i, s := range selections {
		keys[i] = s.FieldKey
	}
	return keys
}

// FormatConfidence renders a nullable confidence as a percentage, or "-".
func FormatConfidence(c *float64) string {
	if c == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *c*100)
}

// FormatValue renders a compare or suggested value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "-"
	case string:
		if val == "" {
			return "-"
		}
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// ExportTasks renders tasks in the given format.
func ExportTasks(list []models.Task, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return shared.MarshalJSON(list, true)
	case FormatCSV:
		return ExportTasksToCSV(list)
	default:
		return ExportTasksToText(list), nil
	}
}

// ExportTasksToCSV converts tasks to CSV with columns: ID, Work, Status, Confidence, Missing, Suggested, Applied, Error
func ExportTasksToCSV(list []models.Task) ([]byte, error) {
	rows := make([][]string, len(list))
	for i, t := range list {
		rows[i] = taskRow(t)
	}
	return writeCSV(taskHeaders, rows)
}

func writeCSV(headers []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Faint(true)).
		Headers(headers...)
}

// ExportTasksToText renders tasks as a bordered table.
func ExportTasksToText(list []models.Task) []byte {
	if len(list) == 0 {
		return []byte("No tasks.\n")
	}

	t := newTable(taskHeaders[:7]...)
	for _, task := range list {
		t.Row(taskRow(task)[:7]...)
	}
	return []byte(t.String() + "\n")
}

// FormatCounts summarizes the queue in one line.
func FormatCounts(c tasks.Counts) string {
	return fmt.Sprintf(
		"%d/%d done (%.0f%%) · pending %d · in progress %d · review %d · complete %d · skipped %d · failed %d",
		c.Completed, c.Total, c.Progress()*100,
		c.Pending, c.InProgress, c.NeedsReview, c.Complete, c.Skipped, c.Failed,
	)
}

// FormatProcessResult summarizes one batch run.
func FormatProcessResult(r *models.ProcessResult) string {
	if r == nil {
		return "Batch skipped: another batch is running."
	}
	return fmt.Sprintf("Processed %d: %d awaiting review, %d covers and %d metadata updates applied, %d failed, %d skipped.",
		r.Processed, r.NeedsReview, r.CoversApplied, r.MetadataApplied, r.Failed, r.Skipped)
}

// FormatBulkResult summarizes a bulk action, listing each failure on its own line.
func FormatBulkResult(r *tasks.BulkResult) string {
	var b strings.Builder

	verb := "Applied"
	if r.Kind == models.ActivityBulkRetry {
		verb = "Retried"
	}
	fmt.Fprintf(&b, "%s %d of %d", verb, r.Applied, r.Requested)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", %d skipped (no suggestions)", r.Skipped)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&b, ", %d failed", r.Failed)
	}
	b.WriteString(".\n")

	for _, item := range r.Items {
		if item.Outcome == tasks.OutcomeFailed && item.Err != nil {
			fmt.Fprintf(&b, "  %s: %s\n", item.TaskID, services.MessageOf(item.Err))
		}
	}
	return b.String()
}

// ExportSources renders the source tiles of a work. cached reports whether a tile's comparison
// is already held locally and may be nil.
func ExportSources(tiles []models.SourceTile, cached func(models.SourceTile) bool, f Format) ([]byte, error) {
	if f == FormatJSON {
		return shared.MarshalJSON(tiles, true)
	}

	headers := []string{"Provider", "Source", "Edition", "Title", "Authors", "Year", "Cached"}
	rows := make([][]string, len(tiles))
	for i, tile := range tiles {
		year := ""
		if tile.Year > 0 {
			year = strconv.Itoa(tile.Year)
		}
		rows[i] = []string{tile.Provider, tile.SourceID, tile.EditionID, tile.Title, tile.Authors, year, yesNo(cached != nil && cached(tile))}
	}

	if f == FormatCSV {
		return writeCSV(headers, rows)
	}
	if len(tiles) == 0 {
		return []byte("No sources found.\n"), nil
	}
	return []byte(newTable(headers...).Rows(rows...).String() + "\n"), nil
}

// ExportCompare renders a field comparison with the choice each field would get.
func ExportCompare(fields []models.CompareField, f Format) ([]byte, error) {
	if f == FormatJSON {
		return shared.MarshalJSON(fields, true)
	}

	headers := []string{"Field", "Current", "Candidate", "Provider", "Choice"}
	rows := make([][]string, len(fields))
	for i, field := range fields {
		label := field.Label
		if label == "" {
			label = field.FieldKey
		}
		candidate := "-"
		if field.CandidateAvailable {
			candidate = FormatValue(field.CandidateValue)
		}
		rows[i] = []string{label, FormatValue(field.CurrentValue), candidate, field.Provider, string(models.DefaultChoice(field))}
	}

	if f == FormatCSV {
		return writeCSV(headers, rows)
	}
	return []byte(newTable(headers...).Rows(rows...).String() + "\n"), nil
}

// ExportHistory renders activity records, newest first as given.
func ExportHistory(records []*models.ActivityRecord, f Format) ([]byte, error) {
	if f == FormatJSON {
		return shared.MarshalJSON(historyJSON(records), true)
	}

	rows := make([][]string, len(records))
	for i, r := range records {
		rows[i] = historyRow(r)
	}

	if f == FormatCSV {
		return writeCSV(historyHeaders, rows)
	}
	if len(records) == 0 {
		return []byte("No activity recorded.\n"), nil
	}
	return []byte(newTable(historyHeaders...).Rows(rows...).String() + "\n"), nil
}

var historyHeaders = []string{"Run", "Kind", "Started", "Duration", "Requested", "Processed", "Applied", "Failed", "Skipped", "Review", "Error"}

func historyRow(r *models.ActivityRecord) []string {
	return []string{
		"#" + strconv.Itoa(r.Sequence()),
		string(r.Kind()),
		r.StartedAt().Local().Format(time.DateTime),
		r.Duration().Round(time.Millisecond).String(),
		strconv.Itoa(r.Requested()),
		strconv.Itoa(r.Processed()),
		strconv.Itoa(r.Applied()),
		strconv.Itoa(r.Failed()),
		strconv.Itoa(r.Skipped()),
		strconv.Itoa(r.NeedsReview()),
		r.ErrorMessage(),
	}
}

type historyEntry struct {
	Sequence    int       `json:"run"`
	Kind        string    `json:"kind"`
	TaskIDs     []string  `json:"task_ids,omitempty"`
	Requested   int       `json:"requested"`
	Processed   int       `json:"processed"`
	Applied     int       `json:"applied"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	NeedsReview int       `json:"needs_review"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

func historyJSON(records []*models.ActivityRecord) []historyEntry {
	out := make([]historyEntry, len(records))
	for i, r := range records {
		out[i] = historyEntry{
			Sequence:    r.Sequence(),
			Kind:        string(r.Kind()),
			TaskIDs:     r.TaskIDs(),
			Requested:   r.Requested(),
			Processed:   r.Processed(),
			Applied:     r.Applied(),
			Failed:      r.Failed(),
			Skipped:     r.Skipped(),
			NeedsReview: r.NeedsReview(),
			Error:       r.ErrorMessage(),
			StartedAt:   r.StartedAt(),
			FinishedAt:  r.FinishedAt(),
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
