package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/bakerysensors/hub/internal/config"
	"github.com/bakerysensors/hub/internal/hubservice"
	"github.com/bakerysensors/hub/internal/logging"
	"github.com/spf13/cobra"
)

type contextKey string

const serviceKey contextKey = "hubservice"

// skipService marks commands that manage their own database connection.
const skipService = "skip-service"

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "sensorctl",
	Short: "sensorctl - Sensor Hub maintenance tool",
	Long: `sensorctl runs one-off maintenance against the Sensor Hub database:
migrations, manual polls and purges, deletes, statistics and settings.
The background scheduler is never started by these commands.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.Monitoring.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	if err := logging.Setup(level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup(cmd *cobra.Command, args []string) error {
	if _, ok := cmd.Annotations[skipService]; ok {
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := hubservice.Bootstrap(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), serviceKey, svc))
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if svc, ok := cmd.Context().Value(serviceKey).(*hubservice.HubService); ok {
		svc.Close()
	}
	logging.Sync()
}

func service(cmd *cobra.Command) *hubservice.HubService {
	return cmd.Context().Value(serviceKey).(*hubservice.HubService)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
