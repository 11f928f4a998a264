package testutil

import (
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// IntegrationTestSuite provides a scratch directory per suite and per test.
type IntegrationTestSuite struct {
	suite.Suite
	tempDir   string
	testDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *IntegrationTestSuite) SetupSuite() {
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "dflog-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir

	s.T().Logf("Integration test suite started in %s", s.tempDir)
}

// TearDownSuite runs after all tests in the suite
func (s *IntegrationTestSuite) TearDownSuite() {
	if s.tempDir != "" {
		os.RemoveAll(s.tempDir)
	}
	s.T().Logf("Integration test suite completed in %v", time.Since(s.startTime))
}

// SetupTest gives every test its own directory under the suite directory.
func (s *IntegrationTestSuite) SetupTest() {
	dir, err := os.MkdirTemp(s.tempDir, "case-*")
	require.NoError(s.T(), err)
	s.testDir = dir
}

// TempDir returns the directory of the current test.
func (s *IntegrationTestSuite) TempDir() string {
	return s.testDir
}

// CreateTempFile creates a file with content in the current test directory
func (s *IntegrationTestSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.testDir, name)
	require.NoError(s.T(), os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.T(), os.WriteFile(path, content, 0o600))
	return path
}
