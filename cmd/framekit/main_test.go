package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/ajitpratap0/framekit/pkg/inspect"
	"github.com/ajitpratap0/framekit/pkg/testutil"
)

type CLISuite struct {
	testutil.RuntimeSuite
}

func TestCLISuite(t *testing.T) {
	suite.Run(t, new(CLISuite))
}

func (s *CLISuite) execute(args ...string) (stdout, stderr string, err error) {
	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-level", "error"))
	err = cmd.ExecuteContext(s.Context())
	return out.String(), errOut.String(), err
}

func (s *CLISuite) TestVersion() {
	out, _, err := s.execute("version")
	s.Require().NoError(err)
	s.Contains(out, "framekit v"+version)
}

func (s *CLISuite) TestDemoJSON() {
	out, _, err := s.execute("demo", "--frames", "90", "--turrets", "2")
	s.Require().NoError(err)

	report, err := inspect.Decode([]byte(out))
	s.Require().NoError(err)

	s.True(report.Summary.Balanced)
	s.Equal(2, report.Summary.Machines)
	s.Equal(2, report.Summary.RunningMachines)
	s.Equal(2, report.Summary.Collections, "bullets and sparks")
	s.GreaterOrEqual(report.Summary.Discarded, 5, "3 trimmed plus 2 orphans")
	s.Equal("*main.Bullet", report.Pools[0].TypeName)
	s.Equal("*main.Turret.turret-0", report.Machines[0].FullName)
}

func (s *CLISuite) TestDemoYAML() {
	out, _, err := s.execute("demo", "--frames", "10", "--format", "yaml")
	s.Require().NoError(err)
	s.Contains(out, "summary:")
	s.Contains(out, "turret-0")
}

func (s *CLISuite) TestDemoRejectsUnknownFormat() {
	_, _, err := s.execute("demo", "--format", "toml")
	s.Error(err)
}

func (s *CLISuite) TestDemoOutputThenStats() {
	path := filepath.Join(s.TempDir(), "report.json")
	_, _, err := s.execute("demo", "--frames", "60", "--output", path)
	s.Require().NoError(err)

	out, _, err := s.execute("stats", path)
	s.Require().NoError(err)
	s.Contains(out, "Machines: 3 live, 3 running")
	s.Contains(out, "*main.Bullet")
	s.Contains(out, "balanced: true")
}

func (s *CLISuite) TestStatsWithoutReportRunsDemo() {
	out, _, err := s.execute("stats")
	s.Require().NoError(err)
	s.Contains(out, "Pools: 2 collections")
}

func (s *CLISuite) TestConfigFile() {
	path := s.CreateTempFile("framekit.yaml", []byte(`
name: arena
pool:
  prewarm:
    bullet: 16
fsm:
  share_pool: true
runtime:
  max_frames: 90
observability:
  enable_tracing: true
`))

	out, stderr, err := s.execute("--config", path, "demo")
	s.Require().NoError(err)

	report, err := inspect.Decode([]byte(out))
	s.Require().NoError(err)
	s.Equal(3, report.Summary.Collections, "machine wrappers share the pool")
	s.GreaterOrEqual(report.Summary.Created, 16)
	s.True(report.Summary.Balanced)

	s.Contains(stderr, "runtime.start")
	s.Contains(stderr, "runtime.prewarm")
}

func (s *CLISuite) TestUnknownPrewarmTypeFails() {
	path := s.CreateTempFile("bad.yaml", []byte("pool:\n  prewarm:\n    asteroid: 2\n"))

	_, _, err := s.execute("--config", path, "demo")
	s.Require().Error(err)
	s.Contains(err.Error(), "asteroid")
}

func (s *CLISuite) TestServeWithoutMetrics() {
	path := s.CreateTempFile("serve.yaml", []byte(`
runtime:
  frame_rate: 1000
  max_frames: 5
observability:
  enable_metrics: false
  metrics_addr: "256.0.0.1:bad"
`))

	_, _, err := s.execute("--config", path, "serve", "--turrets", "1")
	s.Require().NoError(err, "an unusable address is never bound when metrics are disabled")
}

func (s *CLISuite) TestServeWithMetrics() {
	path := s.CreateTempFile("serve-metrics.yaml", []byte(`
runtime:
  frame_rate: 1000
  max_frames: 5
observability:
  enable_metrics: true
  metrics_addr: "127.0.0.1:0"
`))

	_, _, err := s.execute("--config", path, "serve", "--turrets", "1")
	s.Require().NoError(err)
}

func (s *CLISuite) TestMetricsHandler() {
	c := &cli{logLevel: "error"}
	s.Require().NoError(c.setup(newRootCommand()))
	rt, err := c.demoRuntime(s.Context(), 2)
	s.Require().NoError(err)
	defer func() { _ = rt.Shutdown(s.Context()) }()
	s.Require().NoError(rt.Step(5))

	server := httptest.NewServer(metricsHandler(rt))
	defer server.Close()

	resp, err := http.Get(server.URL)
	s.Require().NoError(err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)

	text := string(body)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Contains(text, "framekit_fsm_machines 2")
	s.Contains(text, "framekit_runtime_frames_total")
	s.True(strings.Contains(text, `framekit_fsm_current_state_seconds{name="turret-0"`))
}
