package main

import (
	"fmt"
	"os"

	"github.com/aretw0/stepwise/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stepwise",
	Short: "Stepwise runs multi-step conversational agents",
	Long: `Stepwise drives conversational agents defined as steps, routes, tools and flows.
Each turn a language model picks one action for the current step: ask, answer,
end, move to another step or call a tool.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("dir", ".", "Agent definition: a YAML/JSON file or a directory of Markdown steps")
	flags.String("store", "", "Session store: memory, file, sqlite, blob or redis")
	flags.String("store-path", "", "Path, database file or bucket URL of the session store")
	flags.String("redis-addr", "", "Redis address for the redis store")
	flags.String("oracle", "", "Decision oracle: scripted, openai or anthropic")
	flags.String("model", "", "Model name passed to the oracle")
	flags.String("script", "", "JSON Lines replies for the scripted oracle")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Int("max-errors", 0, "Consecutive recovered errors a turn tolerates")
	flags.Int("max-iterations", 0, "Oracle calls a turn may make")
}

// loadConfig layers defaults, STEPWISE_* variables and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	strFlags := map[string]*string{
		"store":      &cfg.Store,
		"store-path": &cfg.StorePath,
		"redis-addr": &cfg.Redis.Addr,
		"oracle":     &cfg.Oracle,
		"model":      &cfg.Model,
		"script":     &cfg.Script,
		"log-level":  &cfg.LogLevel,
	}
	for name, dst := range strFlags {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	if flags.Changed("max-errors") {
		cfg.MaxErrors, _ = flags.GetInt("max-errors")
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations, _ = flags.GetInt("max-iterations")
	}
	if flags.Lookup("port") != nil && flags.Changed("port") {
		cfg.HTTPPort, _ = flags.GetInt("port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// agentPath returns --dir, or the first argument when --dir was not given.
func agentPath(cmd *cobra.Command, args []string) string {
	path, _ := cmd.Flags().GetString("dir")
	if !cmd.Flags().Changed("dir") && len(args) > 0 {
		path = args[0]
	}
	return path
}
