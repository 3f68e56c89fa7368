package main

import (
	"testing"

	"github.com/srg/plugmini/internal/plug"
	"github.com/srg/plugmini/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type PowerCommandTestSuite struct {
	CommandTestSuite
}

func (suite *PowerCommandTestSuite) TestStatus() {
	// GOAL: Verify status reads the power state and prints it
	//
	// TEST SCENARIO: Plug on → status <address> → "power ON" line → link and radio closed
	suite.Plug.WithPower(true)

	out, _, err := suite.ExecuteCommand("status", testutils.TestPlugAddress)
	suite.Require().NoError(err, "status MUST succeed")

	testutils.NewTextAsserter(suite.T()).Assert(out, "[aa:bb:cc:dd:ee:01] power ON")
	suite.Assert().Equal([][]byte{testutils.FrameGetPower}, suite.Plug.Writes())
	suite.Assert().False(suite.Plug.Connected(), "MUST disconnect after the command")
	suite.Assert().True(suite.Plug.Closed(), "MUST release the radio")
}

func (suite *PowerCommandTestSuite) TestSwitching() {
	// GOAL: Verify on, off and toggle switch the plug and print the new state
	//
	// TEST SCENARIO: Sequence of commands → relay follows → each prints the reported state
	steps := []struct {
		args     []string
		expected string
		on       bool
	}{
		{args: []string{"on", testutils.TestPlugAddress}, expected: "[aa:bb:cc:dd:ee:01] power ON", on: true},
		{args: []string{"toggle", testutils.TestPlugAddress}, expected: "[aa:bb:cc:dd:ee:01] power OFF", on: false},
		{args: []string{"toggle", "--address", testutils.TestPlugAddress}, expected: "[aa:bb:cc:dd:ee:01] power ON", on: true},
		{args: []string{"off", testutils.TestPlugAddress}, expected: "[aa:bb:cc:dd:ee:01] power OFF", on: false},
	}

	for _, step := range steps {
		suite.Run(step.args[0], func() {
			out, _, err := suite.ExecuteCommand(step.args...)
			suite.Require().NoError(err)
			testutils.NewTextAsserter(suite.T()).Assert(out, step.expected)
			suite.Assert().Equal(step.on, suite.Plug.IsOn())
		})
	}
}

func (suite *PowerCommandTestSuite) TestAddressFromConfig() {
	suite.WriteConfig("address: " + testutils.TestPlugAddress + "\n")

	out, _, err := suite.ExecuteCommand("status")
	suite.Require().NoError(err)
	suite.Assert().Contains(out, "power OFF")
}

func (suite *PowerCommandTestSuite) TestNoAddress() {
	_, _, err := suite.ExecuteCommand("status")
	suite.Assert().ErrorIs(err, ErrNoAddress)
	suite.Assert().Zero(suite.Plug.Dials())
}

func (suite *PowerCommandTestSuite) TestFailureReported() {
	// GOAL: Verify a plug failure is printed with its code and returned
	//
	// TEST SCENARIO: Silent plug, short response timeout → RESPONSE_TIMEOUT line → error carries code
	suite.Plug.WithSilence(true)

	out, _, err := suite.ExecuteCommand("on", testutils.TestPlugAddress, "--response-timeout", "50ms")

	suite.Require().Error(err)
	suite.Assert().ErrorIs(err, plug.ErrResponseTimeout)
	suite.Assert().Contains(out, "[aa:bb:cc:dd:ee:01] RESPONSE_TIMEOUT")
	suite.Assert().Contains(FormatUserError(err), "did not reply in time [RESPONSE_TIMEOUT]")
	suite.Assert().False(suite.Plug.Connected(), "MUST close the link on failure")
}

func (suite *PowerCommandTestSuite) TestFind() {
	// GOAL: Verify --find scans before connecting and stops on DEVICE_NOT_FOUND
	//
	// TEST SCENARIO: Plug advertising → found then toggled; silent radio → DEVICE_NOT_FOUND, no dial
	suite.Run("found", func() {
		out, _, err := suite.ExecuteCommand("toggle", testutils.TestPlugAddress, "--find")
		suite.Require().NoError(err)
		testutils.NewTextAsserter(suite.T()).Assert(out, `
plug aa:bb:cc:dd:ee:01 found
[aa:bb:cc:dd:ee:01] power ON
`)
		suite.Assert().Equal(1, suite.Plug.Scans())
	})

	suite.Run("not found", func() {
		suite.Plug.WithAdvertisements()
		dials := suite.Plug.Dials()

		out, _, err := suite.ExecuteCommand("status", testutils.TestPlugAddress, "--find", "--scan-duration", "50ms")
		suite.Assert().ErrorIs(err, plug.ErrDeviceNotFound)
		suite.Assert().Contains(out, "DEVICE_NOT_FOUND")
		suite.Assert().Equal(dials, suite.Plug.Dials(), "MUST NOT connect to a plug that was not found")
	})
}

func (suite *PowerCommandTestSuite) TestLogging() {
	// GOAL: Verify log output goes to stderr and honors the level flags
	//
	// TEST SCENARIO: --verbose → debug frames logged; invalid --log-level → error
	_, logs, err := suite.ExecuteCommand("status", testutils.TestPlugAddress, "--verbose")
	suite.Require().NoError(err)
	suite.Assert().Contains(logs, "Writing request frame")

	_, logs, err = suite.ExecuteCommand("status", testutils.TestPlugAddress, "--log-level", "error")
	suite.Require().NoError(err)
	suite.Assert().NotContains(logs, "Plug connected")

	_, _, err = suite.ExecuteCommand("status", testutils.TestPlugAddress, "--log-level", "loud")
	suite.Assert().ErrorContains(err, "invalid log level")
}

func TestPowerCommandTestSuite(t *testing.T) {
	suite.Run(t, new(PowerCommandTestSuite))
}
