package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/runtime"
	jsonengine "github.com/flowforge/flowforge/runtime/engine/json"
	yamlengine "github.com/flowforge/flowforge/runtime/engine/yaml"
)

var settingsPath string

// NewRootCmd builds the flowforge command tree.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowforge",
		Short: "FlowForge - sequential prompt flow runner",
		Long: `FlowForge executes ordered prompt flows against an OpenAI-compatible
chat completion API, feeding each step's output to the steps after it.

Flows can be served to the studio over HTTP or run from the command line,
live or in deterministic mock mode.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Path to a YAML settings file")

	rootCmd.AddCommand(newServeCmd(), newRunCmd(), newValidateCmd())
	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

func loadSettings() (*runtime.Settings, error) {
	return runtime.LoadSettings(settingsPath, os.LookupEnv)
}

func flowLoaders() []runtime.FlowLoader {
	return []runtime.FlowLoader{
		yamlengine.NewFlowLoader(),
		jsonengine.NewFlowLoader(),
	}
}

// loaderFor picks the loader whose extensions match path.
func loaderFor(path string) (runtime.FlowLoader, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	for _, l := range flowLoaders() {
		for _, pattern := range l.Extensions() {
			if strings.TrimPrefix(pattern, "*") == ext {
				return l, true
			}
		}
	}
	return nil, false
}
