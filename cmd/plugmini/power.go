package main

import (
	"github.com/spf13/cobra"
	"github.com/srg/plugmini/internal/plug"
)

// statusCmd represents the status command
var statusCmd = newPowerCmd("status", "Read the plug power state", plug.GetPower)

// onCmd represents the on command
var onCmd = newPowerCmd("on", "Switch the plug on", plug.SetPower(true))

// offCmd represents the off command
var offCmd = newPowerCmd("off", "Switch the plug off", plug.SetPower(false))

// toggleCmd represents the toggle command
var toggleCmd = newPowerCmd("toggle", "Toggle the plug power state", plug.TogglePower)

func newPowerCmd(use, short string, command plug.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " [address]",
		Short: short,
		Long: short + `.

Connects to the plug for this command only and disconnects afterwards.
With --find the plug is located by scanning first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPower(cmd, args, command)
		},
	}
	cmd.Flags().Bool("find", false, "Scan for the plug before connecting")
	return cmd
}

func runPower(cmd *cobra.Command, args []string, command plug.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	address, err := a.resolveAddress(args)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	p := a.newPlug(address)

	find, _ := cmd.Flags().GetBool("find")
	if find {
		if err := p.Find(ctx); err != nil {
			return err
		}
	}

	_, err = p.Do(ctx, command)
	return err
}
