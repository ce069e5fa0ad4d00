package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/stepwise/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [path]",
	Short: "Converse with an agent in the terminal",
	Long: `Starts an interactive session with the agent at path. Sessions are saved in the
configured store and resumed with --session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		watchMode, _ := cmd.Flags().GetBool("watch")
		fresh, _ := cmd.Flags().GetBool("fresh")
		debug, _ := cmd.Flags().GetBool("debug")
		verbose, _ := cmd.Flags().GetBool("verbose")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return cli.RunSession(ctx, cli.RunOptions{
			Path:      agentPath(cmd, args),
			SessionID: sessionID,
			JSON:      jsonMode,
			Watch:     watchMode,
			Fresh:     fresh,
			Debug:     debug,
			Verbose:   verbose,
			Config:    cfg,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("session", "s", "", "Session ID to create or resume")
	runCmd.Flags().Bool("json", false, "Run in JSON mode (JSON Lines input/output)")
	runCmd.Flags().BoolP("watch", "w", false, "Reload the agent when its definition changes")
	runCmd.Flags().Bool("fresh", false, "Discard the saved session before starting")
	runCmd.Flags().Bool("debug", false, "Log decisions and lifecycle events to stderr")
	runCmd.Flags().BoolP("verbose", "v", false, "Show tool calls and step moves")

	// 'run' is the default command.
	rootCmd.Args = runCmd.Args
	rootCmd.RunE = runCmd.RunE
	rootCmd.Flags().AddFlagSet(runCmd.Flags())
}
