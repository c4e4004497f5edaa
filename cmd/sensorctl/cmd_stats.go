package main

import (
	"github.com/bakerysensors/hub/internal/retention"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show retention statistics for all readings",
	RunE:  runStats,
}

var summaryCmd = &cobra.Command{
	Use:   "summary <sensor-id>",
	Short: "Show the stored history of one sensor",
	Args:  cobra.ExactArgs(1),
	RunE:  runSummary,
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	svc := service(cmd)
	stats, err := svc.Retention.Stats(cmd.Context(), svc.Config.Retention.Months)
	if err != nil {
		return err
	}
	return printJSON(cmd, struct {
		*retention.Stats
		Validation retention.ConfigValidation `json:"validation"`
	}{stats, retention.ValidateConfig(svc.Config.Retention.Months)})
}

func runSummary(cmd *cobra.Command, args []string) error {
	summary, err := service(cmd).Retention.SensorSummary(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printJSON(cmd, summary)
}
