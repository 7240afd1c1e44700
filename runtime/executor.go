package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Mode selects how a run invokes the model.
type Mode int

const (
	// ModeLive calls the configured provider.
	ModeLive Mode = iota
	// ModeMock fabricates deterministic output without any provider call.
	ModeMock
)

func (m Mode) String() string {
	if m == ModeMock {
		return modeLabelMock
	}
	return modeLabelLive
}

// Executor runs flows. Steps execute strictly in order because a step's
// prompts may reference the outputs of the steps before it.
type Executor struct {
	l       *slog.Logger
	tracer  trace.Tracer
	metrics *Metrics
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) {
		e.tracer = t
	}
}

func WithMetrics(m *Metrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = m
	}
}

func NewExecutor(l *slog.Logger, opts ...ExecutorOption) *Executor {
	if l == nil {
		l = slog.Default()
	}
	e := &Executor{
		l:      l,
		tracer: defaultTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes steps against a fresh copy of inputVariables. The mock path
// is used when mode is ModeMock or provider is nil. The first failing step
// aborts the run and no partial response is returned. Steps are assumed to
// have passed ValidateRequest.
func (e *Executor) Run(
	ctx context.Context, steps []Step, inputVariables *Variables, mode Mode, provider Provider,
) (*RunResponse, error) {
	mock := mode == ModeMock || provider == nil
	exec := NewExecution(ctx, inputVariables, mock)

	runCtx, span := e.tracer.Start(exec, "flow.run", trace.WithAttributes(
		RunIDKey.String(exec.ID),
		RunMockKey.Bool(mock),
		RunStepsKey.Int(len(steps)),
	))
	defer span.End()
	exec = exec.WithContext(runCtx)

	e.l.InfoContext(exec, "Starting flow run",
		RunIDAttr(exec.ID),
		slog.Int("steps", len(steps)),
		slog.Bool("mock", mock))

	err := e.executeSteps(exec, steps, provider)
	e.metrics.observeRun(mock, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.l.ErrorContext(exec, "Flow run failed", RunIDAttr(exec.ID), ErrorAttr(err))
		return nil, err
	}

	e.l.InfoContext(exec, "Flow run completed",
		RunIDAttr(exec.ID),
		slog.Int("steps", len(exec.Results)))
	return exec.Response(), nil
}

// Execute runs a validated request. Mode and provider are resolved by the
// caller from the request and the process settings.
func (e *Executor) Execute(ctx context.Context, req *RunRequest, mode Mode, provider Provider) (*RunResponse, error) {
	return e.Run(ctx, req.Steps, &req.InputVariables, mode, provider)
}

func (e *Executor) executeSteps(exec *Execution, steps []Step, provider Provider) error {
	for _, s := range steps {
		if err := exec.Err(); err != nil {
			return fmt.Errorf("run stopped before step %q: %w", s.Title, err)
		}

		started := time.Now()
		res, err := e.ExecuteStep(exec, exec, s, provider)
		e.metrics.observeStep(exec.Mock, started, res, err)
		if err != nil {
			return err
		}

		exec.record(res)
	}
	return nil
}

// ExecuteStep renders and executes a single step against the current run
// context. It does not modify exec; the caller records the result.
func (e *Executor) ExecuteStep(ctx context.Context, exec *Execution, step Step, provider Provider) (StepResult, error) {
	ctx, span := e.tracer.Start(ctx, "flow.step", trace.WithAttributes(
		StepIDKey.String(step.ID),
		StepTitleKey.String(step.Title),
		StepModelKey.String(step.Model),
		StepOutputKey.String(step.OutputKey),
	))
	defer span.End()

	system, user := RenderPrompts(step, exec.Context)
	if user == "" {
		err := newEmptyPromptError(step)
		span.SetStatus(codes.Error, err.Error())
		return StepResult{}, err
	}

	res := StepResult{
		ID:          step.ID,
		Title:       step.Title,
		OutputKey:   step.OutputKey,
		Model:       step.Model,
		Temperature: step.TemperatureValue(),
	}

	if exec.Mock || provider == nil {
		e.l.DebugContext(ctx, fmt.Sprintf("Mocking step: %s", step.Title),
			RunIDAttr(exec.ID), StepIDAttr(step.ID))
		res.Output = MockOutput(step.Title, exec.Context)
		return res, nil
	}

	e.l.InfoContext(ctx, fmt.Sprintf("Calling model for step: %s", step.Title),
		RunIDAttr(exec.ID),
		StepIDAttr(step.ID),
		slog.String("model", step.Model))

	completion, err := provider.Complete(ctx, CompletionRequest{
		Model:       step.Model,
		Temperature: res.Temperature,
		Messages:    buildMessages(system, user),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return StepResult{}, &ProviderError{StepID: step.ID, Title: step.Title, Err: err}
	}

	res.Output = completion.Content
	res.Tokens = completion.Usage
	return res, nil
}

// RenderPrompts renders a step's system and user prompts against ctx,
// substituting the empty string for unresolved variables. The system prompt
// is trimmed.
func RenderPrompts(step Step, ctx Lookup) (system, user string) {
	system = strings.TrimSpace(Render(step.SystemPrompt, ctx, EmptyForMissing))
	user = Render(step.UserPrompt, ctx, EmptyForMissing)
	return system, user
}

func buildMessages(system, user string) []Message {
	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	return append(messages, Message{Role: RoleUser, Content: user})
}
