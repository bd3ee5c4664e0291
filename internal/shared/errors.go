package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTaskNotFound       = fmt.Errorf("task not found")
	ErrDecodeResponse     = fmt.Errorf("failed to decode response")

	// Orchestration errors
	ErrBusy              = fmt.Errorf("operation already in progress")
	ErrClosed            = fmt.Errorf("orchestrator closed")
	ErrNoSuggestions     = fmt.Errorf("task has no suggested metadata")
	ErrNoSelections      = fmt.Errorf("no fields selected")
	ErrInvalidTransition = fmt.Errorf("invalid task status transition")
	ErrStaleResult       = fmt.Errorf("result no longer applies")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
