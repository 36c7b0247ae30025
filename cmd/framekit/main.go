package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/internal/host"
	"github.com/ajitpratap0/framekit/pkg/config"
	"github.com/ajitpratap0/framekit/pkg/logger"
	"github.com/ajitpratap0/framekit/pkg/observability"
)

var version = "0.1.0"

// cli holds state shared by all commands.
type cli struct {
	configFile string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "framekit",
		Short: "framekit - object pool and state machine runtime",
		Long: `framekit hosts a typed object pool and a generic state machine engine
driven by a fixed-step frame loop. The commands below exercise the runtime
and expose its state for inspection and monitoring.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = observability.Shutdown(context.Background())
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&c.configFile, "config", "c", "", "Path to a YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "framekit v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})
	root.AddCommand(newDemoCommand(c))
	root.AddCommand(newStatsCommand(c))
	root.AddCommand(newServeCommand(c))

	return root
}

// setup loads the configuration and initializes logging and tracing.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if len(cfg.Logging.OutputPaths) == 0 {
		cfg.Logging.OutputPaths = []string{"stderr"}
	}
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}

	if cfg.Observability.EnableTracing {
		tracing := observability.DefaultTracingConfig(cfg.Name)
		tracing.ServiceVersion = version
		tracing.SamplingRate = cfg.Observability.TracingSampleRate
		tracing.Writer = cmd.ErrOrStderr()
		if err := observability.InitTracing(tracing); err != nil {
			return err
		}
	}

	c.cfg = cfg
	c.log = logger.With(zap.String("command", cmd.Name()))
	return nil
}

// newRuntime builds and starts a runtime over the demo catalog.
func (c *cli) newRuntime(ctx context.Context) (*host.Runtime, error) {
	rt, err := host.New(c.cfg, host.WithLogger(c.log), host.WithCatalog(newCatalog()))
	if err != nil {
		return nil, err
	}
	if err := rt.Start(ctx); err != nil {
		return nil, err
	}
	return rt, nil
}
