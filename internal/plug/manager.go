package plug

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/device"
	"github.com/srg/plugmini/internal/groutine"
)

// ManagerOptions configures session establishment
type ManagerOptions struct {
	ConnectTimeout time.Duration // Dial bound (0 = no bound beyond ctx)
}

// DefaultManagerOptions returns default connection options
func DefaultManagerOptions() *ManagerOptions {
	return &ManagerOptions{
		ConnectTimeout: 30 * time.Second,
	}
}

// Manager owns plug sessions: it establishes links, resolves the plug's
// endpoints, routes notifications into the session inbox and tears sessions
// down again.
//
// Live sessions are tracked per address; at most one live session exists for
// any address. Registry keys are never deleted: each address owns a slot that
// holds the live session or nil.
type Manager struct {
	dialer device.Dialer
	opts   ManagerOptions
	logger *logrus.Logger
	live   *hashmap.Map[string, *atomic.Pointer[Session]]
}

// NewManager creates a session manager on top of dialer.
// opts may be nil to use DefaultManagerOptions.
func NewManager(dialer device.Dialer, opts *ManagerOptions, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultManagerOptions()
	}

	return &Manager{
		dialer: dialer,
		opts:   *opts,
		logger: logger,
		live:   hashmap.New[string, *atomic.Pointer[Session]](),
	}
}

// NewSession creates a Disconnected session for address
func (m *Manager) NewSession(address string) *Session {
	return newSession(address, m.logger)
}

// Lookup returns the live session for address, if any
func (m *Manager) Lookup(address string) (*Session, bool) {
	slot, ok := m.live.Get(address)
	if !ok {
		return nil, false
	}
	s := slot.Load()
	return s, s != nil
}

// Sessions returns a snapshot of live sessions
func (m *Manager) Sessions() []*Session {
	sessions := make([]*Session, 0, m.live.Len())
	m.live.Range(func(_ string, slot *atomic.Pointer[Session]) bool {
		if s := slot.Load(); s != nil {
			sessions = append(sessions, s)
		}
		return true
	})
	return sessions
}

// claim makes s the live session for its address
func (m *Manager) claim(s *Session) bool {
	slot, _ := m.live.GetOrInsert(s.address, &atomic.Pointer[Session]{})
	return slot.CompareAndSwap(nil, s) || slot.Load() == s
}

// Open creates a session for address and connects it
func (m *Manager) Open(ctx context.Context, address string) (*Session, error) {
	s := m.NewSession(address)
	if err := m.Connect(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

// Connect establishes the link and resolves the plug endpoints.
//
// Resolution is ordered: service, write endpoint, notify endpoint, notify
// capability. The first failure closes the link and leaves the session
// Disconnected. Connecting an already Connected session is a no-op.
func (m *Manager) Connect(ctx context.Context, s *Session) error {
	_, err := m.connect(ctx, s)
	return err
}

// connect reports whether this call established the connection
func (m *Manager) connect(ctx context.Context, s *Session) (bool, error) {
	if s == nil {
		return false, newError(CodeConnectFailed, "", device.ErrNotInitialized)
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.state == StateConnected {
		s.mu.Unlock()
		return false, nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	if !m.claim(s) {
		s.setState(StateDisconnected)
		s.recordError(ErrConnectFailed)
		m.logger.WithField("address", s.address).Warn("Plug already has a live session")
		return false, newError(CodeConnectFailed, s.address, device.ErrAlreadyConnected)
	}

	m.logger.WithField("address", s.address).Info("Connecting to plug...")

	dialCtx := ctx
	if m.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, m.opts.ConnectTimeout)
		defer cancel()
	}

	link, err := m.dialer.Dial(dialCtx, s.address)
	if err != nil {
		return false, m.fail(s, nil, newError(CodeConnectFailed, s.address, err))
	}

	svc, err := link.Service(ServiceUUID)
	if err != nil {
		return false, m.fail(s, link, newError(CodeServiceNotFound, s.address, err))
	}

	rx, err := svc.Characteristic(WriteEndpointUUID)
	if err != nil {
		return false, m.fail(s, link, newError(CodeWriteEndpointNotFound, s.address, err))
	}

	tx, err := svc.Characteristic(NotifyEndpointUUID)
	if err != nil {
		return false, m.fail(s, link, newError(CodeNotifyEndpointNotFound, s.address, err))
	}

	if !tx.CanNotify() {
		return false, m.fail(s, link, newError(CodeNotifyUnsupported, s.address, &device.NotFoundError{
			Resource: "notify property",
			UUIDs:    []string{ServiceUUID, NotifyEndpointUUID},
		}))
	}

	if err := tx.Subscribe(s.inbox.deliver); err != nil {
		return false, m.fail(s, link, newError(CodeConnectFailed, s.address, err))
	}

	lost := make(chan struct{})

	s.mu.Lock()
	s.link, s.rx, s.tx = link, rx, tx
	s.lost = lost
	s.state = StateConnected
	s.lastErr = ""
	s.mu.Unlock()

	m.watch(s, link, lost)

	m.logger.WithFields(logrus.Fields{
		"address":         s.address,
		"service":         device.ShortenUUID(svc.UUID()),
		"write_endpoint":  rx.Properties().String(),
		"notify_endpoint": tx.Properties().String(),
	}).Info("Plug connected")
	return true, nil
}

// fail aborts a connection attempt
func (m *Manager) fail(s *Session, link device.Link, err *Error) error {
	if link != nil {
		if cerr := link.Close(); cerr != nil {
			m.logger.WithFields(logrus.Fields{
				"address": s.address,
				"error":   cerr,
			}).Warn("Failed to close link after aborted connect")
		}
	}

	m.release(s)

	s.mu.Lock()
	s.state = StateDisconnected
	s.lastErr = err.Code
	s.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"address": s.address,
		"code":    err.Code,
		"error":   err.Err,
	}).Info("Plug connect failed")
	return err
}

// Disconnect tears the session down. Best-effort: teardown failures are
// logged, never returned. A Disconnected session is left untouched.
func (m *Manager) Disconnect(s *Session) error {
	if s == nil {
		return nil
	}

	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		m.logger.WithField("address", s.address).Debug("Disconnect called but already disconnected")
		return nil
	}
	link, tx := s.link, s.tx
	close(s.lost)
	s.link, s.rx, s.tx = nil, nil, nil
	s.state = StateDisconnected
	s.mu.Unlock()

	s.inbox.disarm()

	if err := tx.Unsubscribe(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"address": s.address,
			"error":   err,
		}).Warn("Failed to unsubscribe notify endpoint")
	}
	if err := link.Close(); err != nil {
		m.logger.WithFields(logrus.Fields{
			"address": s.address,
			"error":   err,
		}).Warn("Failed to close link")
	}

	m.release(s)
	m.logger.WithField("address", s.address).Info("Plug disconnected")
	return nil
}

// Close disconnects every live session
func (m *Manager) Close() {
	for _, s := range m.Sessions() {
		_ = m.Disconnect(s)
	}
}

func (m *Manager) release(s *Session) {
	if slot, ok := m.live.Get(s.address); ok {
		slot.CompareAndSwap(s, nil)
	}
}

// watch moves the session to Disconnected when the transport reports link loss
func (m *Manager) watch(s *Session, link device.Link, lost chan struct{}) {
	dropped := link.Disconnected()
	if dropped == nil {
		m.logger.WithField("address", s.address).Debug("Link does not report disconnection, link-loss monitor disabled")
		return
	}

	groutine.Go(context.Background(), "plug-link-monitor", func(ctx context.Context) {
		select {
		case <-dropped:
		case <-lost:
			return
		}

		s.mu.Lock()
		if s.lost != lost || s.state != StateConnected {
			s.mu.Unlock()
			return
		}
		close(lost)
		s.link, s.rx, s.tx = nil, nil, nil
		s.state = StateDisconnected
		s.lastErr = CodeConnectionLost
		s.mu.Unlock()

		s.inbox.disarm()
		_ = link.Close()
		m.release(s)

		m.logger.WithFields(logrus.Fields{
			"address":   s.address,
			"goroutine": groutine.GetName(ctx),
		}).Warn("Plug link lost")
	})
}
