package main

import (
	"fmt"
	"os"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect and change stored settings",
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored settings",
	RunE:  runSettingsList,
}

var settingsIntervalCmd = &cobra.Command{
	Use:   "interval [minutes]",
	Short: "Show or set the polling interval",
	Long: `Without an argument, print the polling interval in effect. With one,
store a new interval. A running server picks it up on its next start or
when the interval is changed through the API.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSettingsInterval,
}

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manager PIN commands",
}

var pinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the manager PIN",
	RunE:  runPinSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsIntervalCmd)
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinSetCmd)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	settings, err := service(cmd).Settings.All(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, settings)
}

func runSettingsInterval(cmd *cobra.Command, args []string) error {
	store := service(cmd).Settings
	if len(args) == 1 {
		minutes, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid interval %q: %w", args[0], err)
		}
		if err := store.SetPollingInterval(cmd.Context(), minutes); err != nil {
			return err
		}
	}
	return printJSON(cmd, map[string]int{
		"polling_interval_minutes": store.PollingInterval(cmd.Context()),
	})
}

func runPinSet(cmd *cobra.Command, args []string) error {
	fmt.Fprint(os.Stderr, "Enter new PIN: ")
	pinBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read PIN: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	fmt.Fprint(os.Stderr, "Confirm PIN: ")
	confirmBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read PIN confirmation: %w", err)
	}
	fmt.Fprintln(os.Stderr)

	if string(pinBytes) != string(confirmBytes) {
		return fmt.Errorf("PINs do not match")
	}
	if err := service(cmd).Settings.SetManagerPin(cmd.Context(), string(pinBytes)); err != nil {
		return err
	}
	return printJSON(cmd, map[string]bool{"success": true})
}
