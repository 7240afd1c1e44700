package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowforge/flowforge/runtime"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <flow-file>",
		Short: "Validate a flow file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, ok := loaderFor(args[0])
			if !ok {
				return fmt.Errorf("unsupported flow file type: %s", args[0])
			}

			flow, err := runtime.LoadFlowFile(loader, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "flow %q: %d step(s) OK\n", flow.ID, len(flow.Steps))
			for _, key := range runtime.DuplicateOutputKeys(flow.Steps) {
				fmt.Fprintf(out, "warning: output key %q is written by more than one step\n", key)
			}
			for _, u := range runtime.UnresolvedVariables(flow.Steps, &flow.InputVariables) {
				fmt.Fprintf(out, "warning: step %q references {{%s}} before it is set\n", u.Title, u.Variable)
			}
			return nil
		},
	}
}
