package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// locateCmd represents the locate command
var locateCmd = &cobra.Command{
	Use:   "locate [address]",
	Short: "Check that a plug is advertising nearby",
	Long: `Scans for the plug with the given address and reports whether it was seen.

Examples:
  plugmini locate AA:BB:CC:DD:EE:FF
  plugmini locate --scan-duration 10s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLocate,
}

func runLocate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	address, err := a.resolveAddress(args)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	adv, err := a.locator.Locate(ctx, address, a.cfg.ScanDuration)
	if err != nil {
		return err
	}

	a.console.ShowMessage(fmt.Sprintf("plug %s found (RSSI %d dBm)", address, adv.RSSI()))
	return nil
}
