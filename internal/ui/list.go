package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/shelfx/internal/formatter"
	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/tasks"
)

var _ list.Item = taskItem{}

// taskItem wraps [models.Task] with its selection and lock state to implement [list.Item].
type taskItem struct {
	task     models.Task
	selected bool
	locked   bool
}

func (i taskItem) FilterValue() string { return i.task.ID }

func (i taskItem) Title() string {
	mark := "[ ]"
	switch {
	case i.locked:
		mark = "[~]"
	case i.selected:
		mark = "[x]"
	}
	return fmt.Sprintf("%s %s  %s", mark, i.task.ID, styles.Status(i.task.Status).Render(string(i.task.Status)))
}

func (i taskItem) Description() string {
	parts := []string{"work " + i.task.WorkID}
	if len(i.task.MissingFields) > 0 {
		parts = append(parts, "missing "+strings.Join(i.task.MissingFields, ", "))
	}
	if models.HasSuggestedMetadata(i.task) {
		parts = append(parts, fmt.Sprintf("%d suggested", len(i.task.SuggestedValues)))
	}
	if i.task.Confidence != nil {
		parts = append(parts, formatter.FormatConfidence(i.task.Confidence))
	}
	if i.task.LastError != nil {
		parts = append(parts, *i.task.LastError)
	}
	return strings.Join(parts, " • ")
}

// taskItems lays the snapshot out group by group in status order.
func taskItems(snap tasks.Snapshot) []list.Item {
	items := make([]list.Item, 0, len(snap.Tasks))
	for _, status := range models.Statuses {
		for _, task := range snap.Groups[status] {
			items = append(items, taskItem{
				task:     task,
				selected: snap.IsSelected(task.ID),
				locked:   snap.IsLocked(task.ID),
			})
		}
	}
	return items
}
