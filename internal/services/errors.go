package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for error classification. Stages and clients wrap their
// failures with one of these so the workflow manager can distinguish
// retryable failures from dead ends without inspecting message strings.
var (
	// ErrExternalService marks failures of an external collaborator
	// (enhancement processor, transcription service, object storage).
	ErrExternalService = errors.New("external service error")
	// ErrValidation marks malformed input or an invariant violation.
	// Never retried: re-running will not fix bad data.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks missing or unusable configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks a lookup that proved unsatisfiable at one source.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks an external call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrTransient marks failures expected to succeed on retry.
	ErrTransient = errors.New("transient failure")
	// ErrGateFailed marks a business condition proven unsatisfiable after
	// exhausting every source. Terminal for the whole track, not just the task.
	ErrGateFailed = errors.New("gate failed")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the failure is worth another attempt. Validation
// and configuration problems are not; gate failures are terminal by definition.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrGateFailed):
		return false
	default:
		return true
	}
}

// Class returns the machine-checkable error class recorded alongside the
// human-readable reason string.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrGateFailed):
		return "gate_failed"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrExternalService):
		return "external_service"
	default:
		return "transient"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
