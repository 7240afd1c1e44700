package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"
)

var _ context.Context = &Execution{}

// Execution is the state of a single flow run. It is created fresh for every
// run and never shared, so it needs no locking.
type Execution struct {
	ID      string
	Context *Variables
	Results []StepResult
	Mock    bool
	ctx     context.Context // real context carrying deadline/cancellation
}

// NewExecution seeds a run context from a copy of the input variables.
func NewExecution(ctx context.Context, inputVariables *Variables, mock bool) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Execution{
		ID:      uuid.New().String(),
		Context: inputVariables.Clone(),
		Mock:    mock,
		ctx:     ctx,
	}
}

// context.Context implementation delegates to the embedded ctx so that
// caller deadlines reach the provider and the logger.

func (e *Execution) Deadline() (deadline time.Time, ok bool) {
	return e.ctx.Deadline()
}

func (e *Execution) Done() <-chan struct{} {
	return e.ctx.Done()
}

func (e *Execution) Err() error {
	return e.ctx.Err()
}

func (e *Execution) Value(key any) any {
	return e.ctx.Value(key)
}

// WithContext returns a shallow copy of the Execution with a new embedded
// context. Mirrors the http.Request.WithContext pattern.
func (e *Execution) WithContext(ctx context.Context) *Execution {
	copy := *e
	copy.ctx = ctx
	return &copy
}

// record folds a step result into the run: the output is written under the
// step's output key, replacing any earlier value, and the result appended.
func (e *Execution) record(res StepResult) {
	e.Context.Set(res.OutputKey, res.Output)
	e.Results = append(e.Results, res)
}

// Response snapshots the run as a RunResponse.
func (e *Execution) Response() *RunResponse {
	return &RunResponse{
		RunID:   e.ID,
		Steps:   append([]StepResult{}, e.Results...),
		Context: e.Context.Clone(),
		Mock:    e.Mock,
	}
}
