package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"token-deploy/internal/migration"
)

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Print the deploy steps without running them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, step := range migration.Plan() {
				fmt.Fprintf(out, "%d. %s(%s)\n", i+1, step.Artifact, shortArgs(step.Args))
			}
			return nil
		},
	}
}
