package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/voyagent/voyagent/cmd/voyagent/commands"
	"github.com/voyagent/voyagent/config"
	"github.com/voyagent/voyagent/logger"
	"github.com/voyagent/voyagent/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "voyagent",
	Short: "voyagent - travel research job tracker",
	Long: `voyagent tracks long-running travel research jobs.

It submits a research job to the backend, follows its progress live over
a WebSocket channel (reconnecting with backoff, falling back to status
polling when the channel stays down), and turns completed results into a
ranked list of destination recommendations.

Available commands:
  research - Run and track research jobs
  version  - Show version information

Examples:
  voyagent research run --origin London --from 2025-06-01 --to 2025-06-10 --interests culture
  voyagent research status 3f2a9c
  voyagent research results 3f2a9c --top 3`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath, _ := cmd.Flags().GetString("config"); configPath != "" {
			if _, err := config.LoadFromFile(configPath); err != nil {
				return fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		}

		if metricsAddr, _ := cmd.Flags().GetString("metrics-addr"); metricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", metrics.Handler())
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					logger.Errorw("Metrics endpoint failed", "addr", metricsAddr, "error", err)
				}
			}()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Bool("json-logs", false, "Emit logs as JSON instead of console output")
	rootCmd.PersistentFlags().String("config", "", "Path to a voyagent.toml config file")
	rootCmd.PersistentFlags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	rootCmd.AddCommand(commands.ResearchCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
