package plug

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/device"
)

// GATT layout of the plug
const (
	ServiceUUID        = "cba20d00-224d-11e6-9fb8-0002a5d5c51b"
	WriteEndpointUUID  = "cba20002-224d-11e6-9fb8-0002a5d5c51b"
	NotifyEndpointUUID = "cba20003-224d-11e6-9fb8-0002a5d5c51b"
)

// State is the lifecycle state of a Session
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// Session is one logical connection to a plug.
//
// A Session is either fully Connected (link up, both endpoints resolved, notify
// subscribed) or it holds no transport handles at all. Sessions are created
// and driven by a Manager.
type Session struct {
	address string
	logger  *logrus.Logger
	inbox   *inbox

	reqMu  sync.Mutex // one request in flight
	lifeMu sync.Mutex // serializes connect/disconnect

	mu      sync.Mutex
	state   State
	link    device.Link
	rx      device.RemoteCharacteristic
	tx      device.RemoteCharacteristic
	lost    chan struct{} // closed when this connection generation ends
	lastErr Code
}

func newSession(address string, logger *logrus.Logger) *Session {
	return &Session{
		address: address,
		logger:  logger,
		inbox:   newInbox(logger),
	}
}

// Address returns the plug address this session targets
func (s *Session) Address() string {
	return s.address
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is Connected
func (s *Session) IsConnected() bool {
	return s.State() == StateConnected
}

// LastError returns the code of the most recent failure on this session, or ""
func (s *Session) LastError() Code {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// DroppedNotifications returns how many notifications arrived with no request waiting
func (s *Session) DroppedNotifications() uint64 {
	return s.inbox.Dropped()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) recordError(err error) {
	code := CodeOf(err)
	if code == "" {
		return
	}
	s.mu.Lock()
	s.lastErr = code
	s.mu.Unlock()
}

// exchange writes one frame and waits for the matching notification.
// timeout <= 0 waits until ctx is done or the link is lost.
func (s *Session) exchange(ctx context.Context, frame []byte, timeout time.Duration) ([]byte, error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return nil, newError(CodeConnectionLost, s.address, device.ErrNotConnected)
	}
	rx, lost := s.rx, s.lost
	s.mu.Unlock()

	reply := s.inbox.arm()

	s.logger.WithFields(logrus.Fields{
		"address": s.address,
		"frame":   hexBytes(frame),
	}).Debug("Writing request frame")

	if err := rx.Write(frame, false); err != nil {
		s.inbox.disarm()
		return nil, newError(CodeWriteFailed, s.address, err)
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case data := <-reply:
		s.logger.WithFields(logrus.Fields{
			"address":  s.address,
			"response": hexBytes(data),
		}).Debug("Received response frame")
		return data, nil
	case <-expired:
		s.inbox.disarm()
		return nil, newError(CodeResponseTimeout, s.address, context.DeadlineExceeded)
	case <-lost:
		s.inbox.disarm()
		return nil, newError(CodeConnectionLost, s.address, device.ErrNotConnected)
	case <-ctx.Done():
		s.inbox.disarm()
		return nil, newError(CodeCanceled, s.address, ctx.Err())
	}
}
