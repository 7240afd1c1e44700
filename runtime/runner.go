package runtime

import (
	"context"
	"fmt"
	"log/slog"
)

// Runner is the request-level caller of the Executor. It validates a
// request, resolves credentials and execution mode against the process
// settings, and applies the overall run deadline.
type Runner struct {
	l        *slog.Logger
	settings *Settings
	executor *Executor
	factory  ProviderFactory
}

func NewRunner(l *slog.Logger, settings *Settings, executor *Executor, factory ProviderFactory) *Runner {
	if l == nil {
		l = slog.Default()
	}
	return &Runner{
		l:        l,
		settings: settings,
		executor: executor,
		factory:  factory,
	}
}

// Run validates req and executes it. A *ValidationError is returned before
// anything runs when the request is malformed.
func (r *Runner) Run(ctx context.Context, req *RunRequest) (*RunResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	if dupes := DuplicateOutputKeys(req.Steps); len(dupes) > 0 {
		r.l.WarnContext(ctx, "Output keys written by more than one step; last write wins",
			slog.Any("output_keys", dupes))
	}

	mode, provider, err := r.Resolve(req)
	if err != nil {
		return nil, err
	}

	if r.settings.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.RunTimeout)
		defer cancel()
	}

	return r.executor.Execute(ctx, req, mode, provider)
}

// Resolve picks the execution mode and live provider for req. A provider is
// built only when an API key is available, from the request or the
// settings. Mock mode comes from the request flag when present, else the
// settings; a missing provider forces it.
func (r *Runner) Resolve(req *RunRequest) (Mode, Provider, error) {
	apiKey := r.settings.DefaultAPIKey
	if req.APIKey != nil {
		apiKey = *req.APIKey
	}
	baseURL := r.settings.DefaultBaseURL
	if req.BaseURL != nil {
		baseURL = *req.BaseURL
	}

	var provider Provider
	if apiKey != "" && r.factory != nil {
		p, err := r.factory(apiKey, baseURL)
		if err != nil {
			return ModeMock, nil, fmt.Errorf("failed to create provider: %w", err)
		}
		provider = p
	}

	mock := r.settings.MockEnabled
	if req.Mock != nil {
		mock = *req.Mock
	}
	if mock || provider == nil {
		return ModeMock, nil, nil
	}
	return ModeLive, provider, nil
}
