package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/plugmini/internal/device"
	goble "github.com/srg/plugmini/internal/device/go-ble"
	"github.com/srg/plugmini/internal/display"
	"github.com/srg/plugmini/internal/plug"
	"github.com/srg/plugmini/pkg/config"
	"golang.org/x/sys/unix"
)

// radio is the transport the commands run on
type radio interface {
	device.Transport
	Close() error
}

// newRadio creates the BLE transport. Tests replace it with an in-memory plug.
var newRadio = func(logger *logrus.Logger) radio {
	return goble.NewTransport(logger)
}

// app is the per-invocation wiring shared by all commands
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	radio   radio
	manager *plug.Manager
	client  *plug.Client
	locator *plug.Locator
	console *display.Console
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "plugmini", "config.yaml")
}

// newApp loads configuration, applies flag overrides and wires the plug stack
func newApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if addr, _ := cmd.Flags().GetString("address"); addr != "" {
		cfg.Address = addr
	}
	if cmd.Flags().Changed("scan-duration") {
		cfg.ScanDuration, _ = cmd.Flags().GetDuration("scan-duration")
	}
	if cmd.Flags().Changed("response-timeout") {
		cfg.ResponseTimeout, _ = cmd.Flags().GetDuration("response-timeout")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	r := newRadio(logger)
	manager := plug.NewManager(r, &plug.ManagerOptions{ConnectTimeout: cfg.ConnectTimeout}, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		radio:   r,
		manager: manager,
		client:  plug.NewClient(manager, &plug.ClientOptions{ResponseTimeout: cfg.ResponseTimeout}, logger),
		locator: plug.NewLocator(r, logger),
		console: display.NewConsole(cmd.OutOrStdout(), cfg.HistorySize),
	}, nil
}

// resolveAddress picks the plug address from args, then --address/config
func (a *app) resolveAddress(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if a.cfg.Address != "" {
		return a.cfg.Address, nil
	}
	return "", ErrNoAddress
}

// newPlug binds address to the app's client and locator
func (a *app) newPlug(address string) *plug.Plug {
	return plug.New(address, a.client, a.locator,
		plug.WithReporter(a.console),
		plug.WithScanDuration(a.cfg.ScanDuration),
		plug.WithLogger(a.logger),
	)
}

// Close tears down live sessions and releases the radio
func (a *app) Close() {
	a.manager.Close()
	if err := a.radio.Close(); err != nil {
		a.logger.WithError(err).Debug("Failed to close radio")
	}
}

// signalContext is canceled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, unix.SIGTERM)
}
