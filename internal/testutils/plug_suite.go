package testutils

import (
	"bytes"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/plugmini/internal/plug"
	"github.com/stretchr/testify/suite"
)

// TestPlugAddress is the address FakePlug answers on by default
const TestPlugAddress = "aa:bb:cc:dd:ee:01"

// PlugSuite provides a FakePlug and a plug stack wired on top of it.
//
// Basic usage:
//
//	type ClientSuite struct {
//	    testutils.PlugSuite
//	}
//
//	func (s *ClientSuite) SetupTest() {
//	    s.PlugSuite.SetupTest()
//	    s.Plug.WithPower(true)
//	}
//
// Options that affect wiring (ResponseTimeout, ConnectTimeout) must be set
// before calling PlugSuite.SetupTest, or applied with Rewire.
type PlugSuite struct {
	suite.Suite

	Logger    *logrus.Logger
	LogOutput *bytes.Buffer

	Plug    *FakePlug
	Manager *plug.Manager
	Client  *plug.Client
	Locator *plug.Locator

	ResponseTimeout time.Duration
	ConnectTimeout  time.Duration
}

// SetupSuite creates the shared logger.
func (s *PlugSuite) SetupSuite() {
	s.LogOutput = &bytes.Buffer{}
	s.Logger = logrus.New()
	s.Logger.SetOutput(s.LogOutput)
	s.Logger.SetLevel(logrus.DebugLevel) // enable debug logs to track execution flow
}

// SetupTest creates a fresh FakePlug and plug stack before each test.
func (s *PlugSuite) SetupTest() {
	if s.ResponseTimeout == 0 {
		s.ResponseTimeout = 500 * time.Millisecond
	}
	if s.ConnectTimeout == 0 {
		s.ConnectTimeout = time.Second
	}
	s.LogOutput.Reset()
	s.Plug = NewFakePlug(TestPlugAddress)
	s.Rewire()
}

// Rewire rebuilds Manager, Client and Locator on the current Plug and timeouts.
func (s *PlugSuite) Rewire() {
	s.Manager = plug.NewManager(s.Plug, &plug.ManagerOptions{ConnectTimeout: s.ConnectTimeout}, s.Logger)
	s.Client = plug.NewClient(s.Manager, &plug.ClientOptions{ResponseTimeout: s.ResponseTimeout}, s.Logger)
	s.Locator = plug.NewLocator(s.Plug, s.Logger)
}

// TearDownTest closes live sessions and waits for pending fake replies.
func (s *PlugSuite) TearDownTest() {
	s.Manager.Close()
	s.Plug.WaitReplies()
}

// FinishesWithin runs fn and fails the test if it does not return within d.
// fn runs on another goroutine and must use Assert, not Require.
func (s *PlugSuite) FinishesWithin(d time.Duration, fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	select {
	case <-done:
	case <-time.After(d):
		s.FailNow("MUST NOT hang", "still running after %s", d)
	}
}
