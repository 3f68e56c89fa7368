package plug

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/display"
)

// Plug binds one plug address to a client and locator and tracks the last
// failure. Every operation except Disconnect clears the last error when it
// starts and records the failure code when it fails.
type Plug struct {
	address      string
	client       *Client
	locator      *Locator
	reporter     display.Reporter
	scanDuration time.Duration
	logger       *logrus.Logger

	mu      sync.Mutex
	session *Session
	lastErr Code
}

// Option configures a Plug
type Option func(*Plug)

// WithReporter sends outcomes to r
func WithReporter(r display.Reporter) Option {
	return func(p *Plug) {
		p.reporter = r
	}
}

// WithScanDuration overrides the scan duration used by Find
func WithScanDuration(d time.Duration) Option {
	return func(p *Plug) {
		p.scanDuration = d
	}
}

// WithLogger sets the logger
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Plug) {
		p.logger = logger
	}
}

// New creates a Plug for address
func New(address string, client *Client, locator *Locator, opts ...Option) *Plug {
	p := &Plug{
		address:      address,
		client:       client,
		locator:      locator,
		scanDuration: DefaultScanDuration,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logrus.New()
	}
	return p
}

// Address returns the plug address
func (p *Plug) Address() string {
	return p.address
}

// LastError returns the code of the most recent failure, or "" after a success
func (p *Plug) LastError() Code {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Find scans for the plug's advertisement
func (p *Plug) Find(ctx context.Context) error {
	p.begin()
	if _, err := p.locator.Locate(ctx, p.address, p.scanDuration); err != nil {
		return p.fail(err)
	}
	if p.reporter != nil {
		p.reporter.ShowMessage("plug " + p.address + " found")
	}
	return nil
}

// Connect opens a held session; later commands reuse it until Disconnect
func (p *Plug) Connect(ctx context.Context) error {
	p.begin()
	if err := p.client.Manager().Connect(ctx, p.currentSession()); err != nil {
		return p.fail(err)
	}
	if p.reporter != nil {
		p.reporter.ShowMessage("connected to " + p.address)
	}
	return nil
}

// Disconnect closes the held session. The last error is left as is.
func (p *Plug) Disconnect() error {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	return p.client.Manager().Disconnect(s)
}

// IsConnected reports whether a held session is open
func (p *Plug) IsConnected() bool {
	p.mu.Lock()
	s := p.session
	p.mu.Unlock()
	return s != nil && s.IsConnected()
}

// GetPower reads the power state
func (p *Plug) GetPower(ctx context.Context) (PowerState, error) {
	return p.Do(ctx, GetPower)
}

// SetPower switches the plug on or off
func (p *Plug) SetPower(ctx context.Context, on bool) (PowerState, error) {
	return p.Do(ctx, SetPower(on))
}

// TogglePower inverts the power state
func (p *Plug) TogglePower(ctx context.Context) (PowerState, error) {
	return p.Do(ctx, TogglePower)
}

// Do executes cmd on the held session if open, ephemerally otherwise
func (p *Plug) Do(ctx context.Context, cmd Command) (PowerState, error) {
	p.begin()
	state, err := p.client.Execute(ctx, p.currentSession(), cmd)
	if err != nil {
		return state, p.fail(err)
	}
	if p.reporter != nil {
		p.reporter.ShowPowerStatus(p.address, bool(state))
	}
	return state, nil
}

func (p *Plug) currentSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		p.session = p.client.Manager().NewSession(p.address)
	}
	return p.session
}

func (p *Plug) begin() {
	p.mu.Lock()
	p.lastErr = ""
	p.mu.Unlock()
}

func (p *Plug) fail(err error) error {
	code := CodeOf(err)
	if code == "" {
		code = CodeOperationFailed
	}

	p.mu.Lock()
	p.lastErr = code
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"address": p.address,
		"code":    code,
		"error":   err,
	}).Debug("Plug operation failed")

	if p.reporter != nil {
		p.reporter.ShowError(p.address, string(code), err)
	}
	return err
}
