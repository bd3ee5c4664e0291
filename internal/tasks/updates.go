package tasks

import (
	"fmt"

	"github.com/desertthunder/shelfx/internal/models"
	"github.com/desertthunder/shelfx/internal/services"
)

// Update represents an event published by the [Orchestrator] to its subscribers.
//
// Used to send real-time updates to the CLI or UI layer for display.
type Update struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
	Err     error  // Set for [PhaseError]
}

// Operation phase enumeration
type Phase int

const (
	PhaseRefresh Phase = iota
	PhaseProcess
	PhaseAction
	PhaseBulkApply
	PhaseBulkRetry
	PhaseStateChanged
	PhaseLibraryUpdated
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseRefresh:
		return "refresh"
	case PhaseProcess:
		return "process"
	case PhaseAction:
		return "action"
	case PhaseBulkApply:
		return "bulk_apply"
	case PhaseBulkRetry:
		return "bulk_retry"
	case PhaseStateChanged:
		return "state_changed"
	case PhaseLibraryUpdated:
		return "library_updated"
	case PhaseError:
		return "error"
	default:
		return ""
	}
}

func refreshUpdate(total int) Update {
	return Update{
		Phase:   PhaseRefresh,
		Step:    total,
		Total:   total,
		Message: fmt.Sprintf("Loaded %d tasks", total),
	}
}

func processUpdate(result *models.ProcessResult) Update {
	return Update{
		Phase: PhaseProcess,
		Step:  result.Processed,
		Total: result.Limit,
		Message: fmt.Sprintf(
			"Processed %d (covers %d, metadata %d, review %d, skipped %d, failed %d)",
			result.Processed, result.CoversApplied, result.MetadataApplied,
			result.NeedsReview, result.Skipped, result.Failed,
		),
		Data: result,
	}
}

func actionUpdate(action models.Action, task *models.Task) Update {
	return Update{
		Phase:   PhaseAction,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s %s: %s", action, task.ID, task.Status),
		Data:    task,
	}
}

func bulkItemUpdate(phase Phase, step, total int, item BulkItem) Update {
	msg := fmt.Sprintf("[%d/%d] %s %s", step, total, item.TaskID, item.Outcome)
	if item.Err != nil {
		msg = fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, item.TaskID, services.MessageOf(item.Err))
	}
	return Update{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: msg,
		Data:    item,
	}
}

func bulkDoneUpdate(phase Phase, result *BulkResult) Update {
	return Update{
		Phase: phase,
		Step:  result.Requested,
		Total: result.Requested,
		Message: fmt.Sprintf("Done: %d applied, %d failed, %d skipped",
			result.Applied, result.Failed, result.Skipped),
		Data: result,
	}
}

func stateChangedUpdate() Update {
	return Update{Phase: PhaseStateChanged}
}

func libraryUpdatedUpdate(taskIDs ...string) Update {
	return Update{
		Phase:   PhaseLibraryUpdated,
		Message: "Library updated",
		Data:    taskIDs,
	}
}

func errorUpdate(op string, err error) Update {
	return Update{
		Phase:   PhaseError,
		Message: fmt.Sprintf("%s failed: %s", op, services.MessageOf(err)),
		Err:     err,
	}
}
