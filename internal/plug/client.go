package plug

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/device"
)

// DefaultResponseTimeout bounds the wait for a plug reply
const DefaultResponseTimeout = 5 * time.Second

// ClientOptions configures request execution
type ClientOptions struct {
	ResponseTimeout time.Duration // Reply wait bound (0 = wait until ctx is done or the link drops)
}

// DefaultClientOptions returns default request options
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		ResponseTimeout: DefaultResponseTimeout,
	}
}

// Client executes plug commands over sessions owned by a Manager
type Client struct {
	manager *Manager
	opts    ClientOptions
	logger  *logrus.Logger
}

// NewClient creates a protocol client.
// opts may be nil to use DefaultClientOptions.
func NewClient(manager *Manager, opts *ClientOptions, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultClientOptions()
	}

	return &Client{
		manager: manager,
		opts:    *opts,
		logger:  logger,
	}
}

// Manager returns the session manager the client executes on
func (c *Client) Manager() *Manager {
	return c.manager
}

// Execute runs cmd on s and returns the decoded power state.
//
// A Connected session is reused and stays connected. A session that is not
// connected is connected for this call only and disconnected afterwards on
// every path. A timed out or canceled request disconnects even a held session.
func (c *Client) Execute(ctx context.Context, s *Session, cmd Command) (PowerState, error) {
	if s == nil {
		return PowerOff, newError(CodeConnectFailed, "", device.ErrNotInitialized)
	}

	frame := cmd.Frame()
	if frame == nil {
		return PowerOff, newError(CodeUnsupportedCommand, s.address, fmt.Errorf("%w: command %s", device.ErrUnsupported, cmd))
	}

	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if !s.IsConnected() {
		established, err := c.manager.connect(ctx, s)
		if err != nil {
			return PowerOff, err
		}
		if established {
			defer func() {
				_ = c.manager.Disconnect(s)
			}()
		}
	}

	log := c.logger.WithFields(logrus.Fields{
		"address": s.address,
		"command": cmd.String(),
	})

	resp, err := s.exchange(ctx, frame, c.opts.ResponseTimeout)
	if err != nil {
		s.recordError(err)
		log.WithField("error", err).Debug("Plug request failed")
		if code := CodeOf(err); code == CodeResponseTimeout || code == CodeCanceled {
			// Replies carry no request id; a late one must never reach the next request.
			_ = c.manager.Disconnect(s)
		}
		return PowerOff, err
	}

	state, err := DecodeResponse(cmd, resp)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) && perr.Address == "" {
			perr.Address = s.address
		}
		s.recordError(err)
		log.WithField("error", err).Debug("Plug response rejected")
		return state, err
	}

	log.WithField("power", state.String()).Debug("Plug request completed")
	return state, nil
}

// ExecuteAddress runs cmd against address, reusing its live session when one
// exists and connecting ephemerally otherwise.
func (c *Client) ExecuteAddress(ctx context.Context, address string, cmd Command) (PowerState, error) {
	if s, ok := c.manager.Lookup(address); ok {
		return c.Execute(ctx, s, cmd)
	}
	return c.Execute(ctx, c.manager.NewSession(address), cmd)
}
