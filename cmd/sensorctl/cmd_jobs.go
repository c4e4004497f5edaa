package main

import (
	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Poll SensorPush once and store the results",
	RunE:  runPoll,
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete readings older than the retention period",
	Long: `Delete readings older than the configured retention period. Retention
below six months is raised to six months.`,
	RunE: runPurge,
}

var purgeMonths int

func init() {
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(purgeCmd)
	purgeCmd.Flags().IntVar(&purgeMonths, "months", 0, "retention in months (default: configured value)")
}

func runPoll(cmd *cobra.Command, args []string) error {
	svc := service(cmd)
	err := svc.Polling.RunPollOnce(cmd.Context())
	status := svc.Polling.Status()
	out := map[string]interface{}{
		"success":        err == nil,
		"last_poll_time": status.LastPollTime,
	}
	if err != nil {
		out["error"] = err.Error()
	}
	if perr := printJSON(cmd, out); perr != nil {
		return perr
	}
	return err
}

func runPurge(cmd *cobra.Command, args []string) error {
	svc := service(cmd)
	months := svc.Config.Retention.Months
	if cmd.Flags().Changed("months") {
		months = purgeMonths
	}
	res := svc.Retention.PurgeOldReadings(cmd.Context(), months)
	return printResult(cmd, res, res.Success)
}
