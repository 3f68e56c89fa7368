package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "plugmini",
	Short: "SwitchBot Plug Mini controller over Bluetooth Low Energy",
	Long: `Controls a SwitchBot Plug Mini (JP) over Bluetooth Low Energy:

- Discover nearby plugs and locate a plug by address
- Read the power state, switch it on or off, or toggle it
- Run a cron-style power timer

The plug address may be passed as an argument, with --address, or set in the
config file (address: ...).`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(toggleCmd)
	rootCmd.AddCommand(timerCmd)

	// Global flags
	rootCmd.PersistentFlags().String("config", defaultConfigPath(), "Config file (YAML)")
	rootCmd.PersistentFlags().String("address", "", "Plug BLE address (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().Duration("scan-duration", 0, "Scan duration (overrides config)")
	rootCmd.PersistentFlags().Duration("response-timeout", 0, "Reply wait bound, 0 waits until canceled (overrides config)")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
