package main

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete stored readings",
}

var deleteSensorCmd = &cobra.Command{
	Use:   "sensor <sensor-id>",
	Short: "Delete the readings of one sensor",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteSensor,
}

var deleteRangeCmd = &cobra.Command{
	Use:   "range",
	Short: "Delete readings within a date range",
	RunE:  runDeleteRange,
}

var (
	deleteStart   string
	deleteEnd     string
	deleteSensors []string
	deleteForce   bool
)

func init() {
	rootCmd.AddCommand(deleteCmd)
	deleteCmd.AddCommand(deleteSensorCmd)
	deleteCmd.AddCommand(deleteRangeCmd)

	deleteCmd.PersistentFlags().StringVar(&deleteStart, "start", "", "start of the range (RFC3339 or YYYY-MM-DD)")
	deleteCmd.PersistentFlags().StringVar(&deleteEnd, "end", "", "end of the range, inclusive (RFC3339 or YYYY-MM-DD)")
	deleteCmd.PersistentFlags().BoolVarP(&deleteForce, "force", "f", false, "skip the confirmation prompt")
	deleteRangeCmd.Flags().StringSliceVar(&deleteSensors, "sensor", nil, "limit to these sensor IDs")
}

func runDeleteSensor(cmd *cobra.Command, args []string) error {
	start, err := parseDate(deleteStart, false)
	if err != nil {
		return err
	}
	end, err := parseDate(deleteEnd, true)
	if err != nil {
		return err
	}
	if !confirm(cmd, fmt.Sprintf("Delete readings of sensor %s%s?", args[0], describeRange(start, end))) {
		return fmt.Errorf("operation cancelled")
	}
	res := service(cmd).Retention.DeleteBySensor(cmd.Context(), args[0], start, end)
	return printResult(cmd, res, res.Success)
}

func runDeleteRange(cmd *cobra.Command, args []string) error {
	start, err := parseDate(deleteStart, false)
	if err != nil {
		return err
	}
	end, err := parseDate(deleteEnd, true)
	if err != nil {
		return err
	}
	if start == nil || end == nil {
		return fmt.Errorf("--start and --end are required")
	}
	target := "all sensors"
	if len(deleteSensors) > 0 {
		target = "sensors " + strings.Join(deleteSensors, ", ")
	}
	if !confirm(cmd, fmt.Sprintf("Delete readings of %s%s?", target, describeRange(start, end))) {
		return fmt.Errorf("operation cancelled")
	}
	res := service(cmd).Retention.DeleteByDateRange(cmd.Context(), *start, *end, deleteSensors)
	return printResult(cmd, res, res.Success)
}

// parseDate accepts RFC3339 or a plain date. A plain end date covers the
// whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use RFC3339 or YYYY-MM-DD", s)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func describeRange(start, end *time.Time) string {
	switch {
	case start != nil && end != nil:
		return fmt.Sprintf(" from %s to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	case start != nil:
		return " from " + start.Format(time.RFC3339)
	case end != nil:
		return " up to " + end.Format(time.RFC3339)
	}
	return ""
}

func confirm(cmd *cobra.Command, question string) bool {
	if deleteForce {
		return true
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "WARNING: %s This cannot be undone.\nType 'yes' to continue: ", question)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.TrimSpace(strings.ToLower(answer)) == "yes"
}

func printResult(cmd *cobra.Command, v interface{}, ok bool) error {
	if err := printJSON(cmd, v); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("operation failed")
	}
	return nil
}
