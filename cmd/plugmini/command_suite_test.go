package main

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/srg/plugmini/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// CommandTestSuite runs commands against an in-memory plug.
// All cmd/plugmini test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	Plug       *testutils.FakePlug
	ConfigPath string

	originalRadio func(*logrus.Logger) radio
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalRadio = newRadio
}

func (s *CommandTestSuite) TearDownSuite() {
	newRadio = s.originalRadio
}

// SetupTest installs a fresh FakePlug and an empty config file
func (s *CommandTestSuite) SetupTest() {
	s.Plug = testutils.NewFakePlug(testutils.TestPlugAddress)
	newRadio = func(*logrus.Logger) radio {
		return s.Plug
	}
	s.ConfigPath = filepath.Join(s.T().TempDir(), "config.yaml")
	s.WriteConfig("")
	resetFlags(rootCmd)
}

func (s *CommandTestSuite) TearDownTest() {
	s.Plug.WaitReplies()
}

// WriteConfig replaces the config file content
func (s *CommandTestSuite) WriteConfig(content string) {
	s.Require().NoError(os.WriteFile(s.ConfigPath, []byte(content), 0o600), "config MUST be written")
}

// ExecuteCommand runs the root command with args and the suite config.
// Returns stdout, the log output and the command error.
func (s *CommandTestSuite) ExecuteCommand(args ...string) (string, string, error) {
	out := new(bytes.Buffer)
	logs := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(logs)
	rootCmd.SetArgs(append(args, "--config", s.ConfigPath))
	defer resetFlags(rootCmd)

	err := rootCmd.Execute()
	return out.String(), logs.String(), err
}

// resetFlags restores every flag of cmd and its subcommands to its default
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
