package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/stepwise/internal/validator"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check the agent definition for consistency",
	Long: `Loads the agent, which rejects broken routes, unknown tools and invalid flows,
then crawls the routes from the start step and reports unreachable steps,
unused tools and flows that can never be entered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, err := openForInspection(cmd, args)
		if err != nil {
			return err
		}

		report := validator.Validate(agent.Inspect())
		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			return report.Err()
		}

		for _, w := range report.Warnings {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		if err := report.Err(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Agent '%s' is valid! ✅\n", agent.Name())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().Bool("json", false, "Print the report as JSON")
}
