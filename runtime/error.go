package runtime

import (
	"fmt"
	"strings"
)

// Issue is one validation failure on a request field.
type Issue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError reports a malformed request. It is raised before any
// step executes.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		msgs[i] = issue.Message
	}
	return fmt.Sprintf("invalid request:\n  - %s", strings.Join(msgs, "\n  - "))
}

// StepExecutionError aborts a run when a step cannot proceed.
type StepExecutionError struct {
	StepID  string
	Title   string
	Message string
}

func (e *StepExecutionError) Error() string {
	return e.Message
}

func newEmptyPromptError(step Step) *StepExecutionError {
	return &StepExecutionError{
		StepID:  step.ID,
		Title:   step.Title,
		Message: fmt.Sprintf("Step %q resolved to an empty user prompt.", step.Title),
	}
}

// ProviderError wraps a failed completion call with the step it served.
type ProviderError struct {
	StepID string
	Title  string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Title, e.Err)
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *ProviderError) Unwrap() error {
	return e.Err
}
