package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/srg/plugmini/internal/plug"
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List plugs advertising nearby",
	Long: `Scans for the configured duration and lists every Plug Mini seen, in the
order it was first seen. Use the address column to configure the plug.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
}

// candidateInfo is the JSON form of a discovered plug
type candidateInfo struct {
	Address          string `json:"address"`
	Name             string `json:"name,omitempty"`
	RSSI             int    `json:"rssi"`
	ManufacturerData string `json:"manufacturer_data"`
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	validFormats := []string{"table", "json"}
	isValidFormat := false
	for _, f := range validFormats {
		if format == f {
			isValidFormat = true
			break
		}
	}
	if !isValidFormat {
		return fmt.Errorf("invalid format '%s': must be one of %v", format, validFormats)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	candidates, err := a.locator.Discover(ctx, a.cfg.ScanDuration)
	if err != nil {
		return err
	}

	if format == "json" {
		return displayCandidatesJSON(cmd, candidates)
	}

	if len(candidates) == 0 {
		a.console.ShowMessage("no plugs found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tRSSI\tNAME\tMANUFACTURER DATA")
	for _, c := range candidates {
		name := c.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", c.Address, c.RSSI, name, hex.EncodeToString(c.ManufacturerData))
	}
	return w.Flush()
}

func displayCandidatesJSON(cmd *cobra.Command, candidates []plug.Candidate) error {
	infos := make([]candidateInfo, 0, len(candidates))
	for _, c := range candidates {
		infos = append(infos, candidateInfo{
			Address:          c.Address,
			Name:             c.Name,
			RSSI:             c.RSSI,
			ManufacturerData: hex.EncodeToString(c.ManufacturerData),
		})
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(infos)
}
