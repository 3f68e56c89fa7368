package plug_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/srg/plugmini/internal/device"
	"github.com/srg/plugmini/internal/plug"
	"github.com/srg/plugmini/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type ManagerTestSuite struct {
	testutils.PlugSuite
}

func (suite *ManagerTestSuite) TestConnect() {
	// GOAL: Verify a successful connect resolves the plug and registers the session
	//
	// TEST SCENARIO: Connect to fake plug → session Connected → registry holds it → Disconnect releases it
	s, err := suite.Manager.Open(context.Background(), testutils.TestPlugAddress)
	suite.Require().NoError(err, "MUST connect")

	suite.Assert().Equal(plug.StateConnected, s.State())
	suite.Assert().True(s.IsConnected())
	suite.Assert().Equal(plug.Code(""), s.LastError())
	suite.Assert().True(suite.Plug.Connected(), "MUST hold a link")

	live, ok := suite.Manager.Lookup(testutils.TestPlugAddress)
	suite.Assert().True(ok, "MUST register live session")
	suite.Assert().Same(s, live)
	suite.Assert().Len(suite.Manager.Sessions(), 1)

	suite.Run("connect again is a no-op", func() {
		suite.Require().NoError(suite.Manager.Connect(context.Background(), s))
		suite.Assert().Equal(1, suite.Plug.Dials(), "MUST NOT dial again")
	})

	suite.Run("disconnect releases everything", func() {
		suite.Require().NoError(suite.Manager.Disconnect(s))
		suite.Assert().Equal(plug.StateDisconnected, s.State())
		suite.Assert().False(suite.Plug.Connected(), "MUST close link")
		suite.Assert().Equal(1, suite.Plug.Unsubscribes(), "MUST unsubscribe notify endpoint")
		_, ok := suite.Manager.Lookup(testutils.TestPlugAddress)
		suite.Assert().False(ok, "MUST release registry entry")
	})

	suite.Run("disconnect twice is a no-op", func() {
		suite.Require().NoError(suite.Manager.Disconnect(s))
		suite.Assert().Equal(1, suite.Plug.ClosedLinks(), "MUST NOT close twice")
	})
}

func (suite *ManagerTestSuite) TestConnectFailures() {
	// GOAL: Verify each resolution failure maps to its code and leaves nothing open
	//
	// TEST SCENARIO: Fake plug missing one piece → Connect fails with code → link closed, session Disconnected
	cases := []struct {
		name       string
		setup      func(p *testutils.FakePlug)
		sentinel   error
		linkOpened bool
	}{
		{
			name:     "dial failure",
			setup:    func(p *testutils.FakePlug) { p.WithDialError(errors.New("page timeout")) },
			sentinel: plug.ErrConnectFailed,
		},
		{
			name:       "missing service",
			setup:      func(p *testutils.FakePlug) { p.WithoutService() },
			sentinel:   plug.ErrServiceNotFound,
			linkOpened: true,
		},
		{
			name:       "missing write endpoint",
			setup:      func(p *testutils.FakePlug) { p.WithoutWriteEndpoint() },
			sentinel:   plug.ErrWriteEndpointNotFound,
			linkOpened: true,
		},
		{
			name:       "missing notify endpoint",
			setup:      func(p *testutils.FakePlug) { p.WithoutNotifyEndpoint() },
			sentinel:   plug.ErrNotifyEndpointNotFound,
			linkOpened: true,
		},
		{
			name:       "notify endpoint without notify",
			setup:      func(p *testutils.FakePlug) { p.WithNotifyProperties(device.PropRead) },
			sentinel:   plug.ErrNotifyUnsupported,
			linkOpened: true,
		},
		{
			name:       "subscribe failure",
			setup:      func(p *testutils.FakePlug) { p.WithSubscribeError(errors.New("cccd write rejected")) },
			sentinel:   plug.ErrConnectFailed,
			linkOpened: true,
		},
	}

	for _, tc := range cases {
		suite.Run(tc.name, func() {
			suite.Plug = testutils.NewFakePlug(testutils.TestPlugAddress)
			tc.setup(suite.Plug)
			suite.Rewire()

			s := suite.Manager.NewSession(testutils.TestPlugAddress)
			err := suite.Manager.Connect(context.Background(), s)

			suite.Require().Error(err, "MUST fail")
			suite.Assert().ErrorIs(err, tc.sentinel, "MUST report the failing step")
			suite.Assert().Equal(plug.CodeOf(tc.sentinel), s.LastError(), "MUST record the code")
			suite.Assert().Equal(plug.StateDisconnected, s.State(), "MUST end Disconnected")
			suite.Assert().False(suite.Plug.Connected(), "MUST NOT leave a link open")
			if tc.linkOpened {
				suite.Assert().Equal(1, suite.Plug.ClosedLinks(), "MUST close the opened link")
			}
			_, ok := suite.Manager.Lookup(testutils.TestPlugAddress)
			suite.Assert().False(ok, "MUST NOT keep registry entry")
		})
	}
}

func (suite *ManagerTestSuite) TestConnectTimeout() {
	// GOAL: Verify a slow dial is bounded by the connect timeout
	//
	// TEST SCENARIO: Dial delay beyond timeout → CONNECT_FAILED wrapping deadline
	suite.ConnectTimeout = 50 * time.Millisecond
	defer func() { suite.ConnectTimeout = 0 }()
	suite.Plug.WithDialDelay(5 * time.Second)
	suite.Rewire()

	s := suite.Manager.NewSession(testutils.TestPlugAddress)
	err := suite.Manager.Connect(context.Background(), s)

	suite.Assert().ErrorIs(err, plug.ErrConnectFailed)
	suite.Assert().ErrorIs(err, context.DeadlineExceeded, "MUST wrap the dial deadline")
	suite.Assert().Equal(plug.StateDisconnected, s.State())
}

func (suite *ManagerTestSuite) TestOneLiveSessionPerAddress() {
	// GOAL: Verify the registry refuses a second live session for the same address
	//
	// TEST SCENARIO: First session connected → second Connect → CONNECT_FAILED already_connected → first untouched
	first, err := suite.Manager.Open(context.Background(), testutils.TestPlugAddress)
	suite.Require().NoError(err)

	second := suite.Manager.NewSession(testutils.TestPlugAddress)
	err = suite.Manager.Connect(context.Background(), second)

	suite.Assert().ErrorIs(err, plug.ErrConnectFailed)
	suite.Assert().ErrorIs(err, device.ErrAlreadyConnected)
	suite.Assert().Equal(plug.CodeConnectFailed, second.LastError())
	suite.Assert().Equal(plug.StateDisconnected, second.State())
	suite.Assert().True(first.IsConnected(), "MUST keep the first session")
	suite.Assert().Equal(1, suite.Plug.Dials(), "MUST NOT dial for the rejected session")

	live, _ := suite.Manager.Lookup(testutils.TestPlugAddress)
	suite.Assert().Same(first, live, "MUST keep registry owner")
}

func (suite *ManagerTestSuite) TestDisconnectKeepsLastError() {
	// GOAL: Verify Disconnect never touches the last error
	//
	// TEST SCENARIO: Failed connect → Disconnect → code preserved
	suite.Plug.WithoutService()
	s := suite.Manager.NewSession(testutils.TestPlugAddress)
	suite.Require().Error(suite.Manager.Connect(context.Background(), s))

	suite.Require().NoError(suite.Manager.Disconnect(s))
	suite.Assert().Equal(plug.CodeServiceNotFound, s.LastError(), "MUST keep last error")
	suite.Assert().NoError(suite.Manager.Disconnect(nil), "nil session MUST be accepted")
}

func (suite *ManagerTestSuite) TestLinkLoss() {
	// GOAL: Verify a dropped link moves the session to Disconnected with CONNECTION_LOST
	//
	// TEST SCENARIO: Connected session → peripheral drops link → monitor tears session down → reconnect works
	suite.Plug.WithDisconnectReporting()

	s, err := suite.Manager.Open(context.Background(), testutils.TestPlugAddress)
	suite.Require().NoError(err)

	suite.Plug.DropLink()

	suite.Require().Eventually(func() bool {
		return s.State() == plug.StateDisconnected
	}, time.Second, 5*time.Millisecond, "MUST notice link loss")
	suite.Assert().Equal(plug.CodeConnectionLost, s.LastError())
	_, ok := suite.Manager.Lookup(testutils.TestPlugAddress)
	suite.Assert().False(ok, "MUST release registry entry")

	suite.Require().NoError(suite.Manager.Connect(context.Background(), s), "MUST reconnect after loss")
	suite.Assert().True(s.IsConnected())
	suite.Assert().Equal(plug.Code(""), s.LastError(), "successful connect MUST clear last error")
}

func (suite *ManagerTestSuite) TestReconnectCycles() {
	// GOAL: Verify one address can be connected, released and connected again repeatedly
	//
	// TEST SCENARIO: Same session and fresh sessions alternate connect → disconnect → each cycle registers and releases
	const cycles = 5

	suite.Run("same session", func() {
		s := suite.Manager.NewSession(testutils.TestPlugAddress)
		suite.FinishesWithin(2*time.Second, func() {
			for i := 0; i < cycles; i++ {
				if !suite.Assert().NoError(suite.Manager.Connect(context.Background(), s), "cycle %d MUST connect", i) {
					return
				}
				live, ok := suite.Manager.Lookup(testutils.TestPlugAddress)
				suite.Assert().True(ok, "cycle %d MUST register", i)
				suite.Assert().Same(s, live)
				suite.Assert().NoError(suite.Manager.Disconnect(s))
				_, ok = suite.Manager.Lookup(testutils.TestPlugAddress)
				suite.Assert().False(ok, "cycle %d MUST release", i)
			}
		})
	})

	suite.Run("fresh sessions", func() {
		suite.FinishesWithin(2*time.Second, func() {
			for i := 0; i < cycles; i++ {
				s, err := suite.Manager.Open(context.Background(), testutils.TestPlugAddress)
				if !suite.Assert().NoError(err, "cycle %d MUST connect", i) {
					return
				}
				suite.Assert().Len(suite.Manager.Sessions(), 1, "MUST hold exactly one live session")
				suite.Assert().NoError(suite.Manager.Disconnect(s))
				suite.Assert().Empty(suite.Manager.Sessions())
			}
		})
	})

	suite.Assert().Equal(2*cycles, suite.Plug.Dials())
	suite.Assert().Equal(2*cycles, suite.Plug.ClosedLinks())
}

func (suite *ManagerTestSuite) TestReleasedAddressCanBeClaimedByAnotherSession() {
	// GOAL: Verify a released address is free for a different session
	//
	// TEST SCENARIO: A connects → B refused → A disconnects → B connects → A refused
	a := suite.Manager.NewSession(testutils.TestPlugAddress)
	b := suite.Manager.NewSession(testutils.TestPlugAddress)

	suite.Require().NoError(suite.Manager.Connect(context.Background(), a))
	suite.Require().ErrorIs(suite.Manager.Connect(context.Background(), b), device.ErrAlreadyConnected)

	suite.Require().NoError(suite.Manager.Disconnect(a))
	suite.Require().NoError(suite.Manager.Connect(context.Background(), b), "MUST claim the released address")

	live, ok := suite.Manager.Lookup(testutils.TestPlugAddress)
	suite.Require().True(ok)
	suite.Assert().Same(b, live)
	suite.Assert().ErrorIs(suite.Manager.Connect(context.Background(), a), device.ErrAlreadyConnected)
}

func (suite *ManagerTestSuite) TestConnectLogsResolvedService() {
	_, err := suite.Manager.Open(context.Background(), testutils.TestPlugAddress)
	suite.Require().NoError(err)
	suite.Assert().Contains(suite.LogOutput.String(), "service=cba20d00", "MUST log the shortened service UUID")
}

func (suite *ManagerTestSuite) TestClose() {
	// GOAL: Verify Close disconnects all live sessions
	//
	// TEST SCENARIO: Open session → Close → no sessions remain
	s, err := suite.Manager.Open(context.Background(), testutils.TestPlugAddress)
	suite.Require().NoError(err)

	suite.Manager.Close()

	suite.Assert().False(s.IsConnected())
	suite.Assert().Empty(suite.Manager.Sessions())
	suite.Assert().False(suite.Plug.Connected())
}

func (suite *ManagerTestSuite) TestNilSession() {
	err := suite.Manager.Connect(context.Background(), nil)
	suite.Assert().ErrorIs(err, plug.ErrConnectFailed)
	suite.Assert().ErrorIs(err, device.ErrNotInitialized)
}

func TestManagerTestSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
