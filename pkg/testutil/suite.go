package testutil

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// RuntimeSuite provides base functionality for end-to-end tests that load
// configuration files and drive a runtime.
type RuntimeSuite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *RuntimeSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 2*time.Minute)
	s.startTime = time.Now()

	tempDir, err := os.MkdirTemp("", "framekit-test-*")
	require.NoError(s.T(), err)
	s.tempDir = tempDir
}

// TearDownSuite runs after all tests in the suite
func (s *RuntimeSuite) TearDownSuite() {
	s.cancel()

	if s.tempDir != "" {
		_ = os.RemoveAll(s.tempDir)
	}

	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *RuntimeSuite) Context() context.Context {
	return s.ctx
}

// TempDir returns the temporary directory path
func (s *RuntimeSuite) TempDir() string {
	return s.tempDir
}

// Logger returns a logger bound to the current test
func (s *RuntimeSuite) Logger() *zap.Logger {
	return TestLogger(s.T())
}

// CreateTempFile writes content to name inside the suite directory and
// returns its path.
func (s *RuntimeSuite) CreateTempFile(name string, content []byte) string {
	path := filepath.Join(s.tempDir, name)
	require.NoError(s.T(), os.WriteFile(path, content, 0600))
	return path
}
