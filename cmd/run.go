package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/plugins/openai"
	"github.com/flowforge/flowforge/runtime"
	yamlengine "github.com/flowforge/flowforge/runtime/engine/yaml"
)

// ErrChecksFailed is returned when a flow check does not pass.
var ErrChecksFailed = errors.New("flow checks failed")

type runOptions struct {
	mock    bool
	vars    []string
	checks  []string
	apiKey  string
	baseURL string
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run [flow-file | -]",
		Short: "Run a flow and print the result",
		Long: `Run executes a flow file (YAML or JSON) and prints the run response as JSON.
With "-" a run request is read as JSON from stdin. Without arguments the
built-in starter flow runs.

Checks are expr expressions over the final context; the command fails when
any of them is not true.

Example:
  flowforge run --mock
  flowforge run flows/launch.yaml --var product=Acme --check 'len(cta) > 0'
  cat request.json | flowforge run -
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("mock") {
				return runFlow(cmd, args, opts, &opts.mock)
			}
			return runFlow(cmd, args, opts, nil)
		},
	}

	runCmd.Flags().BoolVar(&opts.mock, "mock", false, "Force (or with =false, disable) mock mode")
	runCmd.Flags().StringArrayVar(&opts.vars, "var", nil, "Input variable as key=value (repeatable)")
	runCmd.Flags().StringArrayVar(&opts.checks, "check", nil, "Check expression evaluated after the run (repeatable)")
	runCmd.Flags().StringVar(&opts.apiKey, "api-key", "", "API key (overrides OPENAI_API_KEY)")
	runCmd.Flags().StringVar(&opts.baseURL, "base-url", "", "API base URL (overrides OPENAI_BASE_URL)")
	return runCmd
}

func runFlow(cmd *cobra.Command, args []string, opts runOptions, mock *bool) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}

	req, checks, err := readRequest(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	for _, kv := range opts.vars {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --var %q, expected key=value", kv)
		}
		req.InputVariables.Set(k, v)
	}
	if mock != nil {
		req.Mock = mock
	}
	if opts.apiKey != "" {
		req.APIKey = &opts.apiKey
	}
	if opts.baseURL != "" {
		req.BaseURL = &opts.baseURL
	}
	checks = append(checks, opts.checks...)

	logger := runtime.NewLogger(cmd.ErrOrStderr(), settings.LogLevel, "text")
	executor := runtime.NewExecutor(logger)
	runner := runtime.NewRunner(logger, settings, executor, openai.NewFactory(settings))

	resp, err := runner.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}

	if len(checks) == 0 {
		return nil
	}
	return reportChecks(cmd.ErrOrStderr(), yamlengine.NewExpressionEvaluator().Check(checks, resp.Context))
}

// readRequest resolves the run request from the arguments: a flow file, a
// JSON request on stdin, or the built-in starter flow.
func readRequest(stdin io.Reader, args []string) (*runtime.RunRequest, []string, error) {
	if len(args) == 0 {
		flow := runtime.DefaultFlow()
		return flow.Request(), flow.Checks, nil
	}

	if args[0] == "-" {
		var req runtime.RunRequest
		if err := json.NewDecoder(stdin).Decode(&req); err != nil {
			return nil, nil, fmt.Errorf("error reading request from stdin: %w", err)
		}
		return &req, nil, nil
	}

	loader, ok := loaderFor(args[0])
	if !ok {
		return nil, nil, fmt.Errorf("unsupported flow file type: %s", args[0])
	}
	flow, err := loader.Load(args[0])
	if err != nil {
		return nil, nil, err
	}
	return flow.Request(), flow.Checks, nil
}

func reportChecks(w io.Writer, results []yamlengine.CheckResult) error {
	failed := 0
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
			fmt.Fprintf(w, "ERROR %s: %s\n", r.Expression, r.Error)
		case !r.Passed:
			failed++
			fmt.Fprintf(w, "FAIL  %s\n", r.Expression)
		default:
			fmt.Fprintf(w, "PASS  %s\n", r.Expression)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrChecksFailed, failed, len(results))
	}
	return nil
}
