package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/framekit/internal/host"
	"github.com/ajitpratap0/framekit/pkg/cachepool"
	"github.com/ajitpratap0/framekit/pkg/fsm"
	"github.com/ajitpratap0/framekit/pkg/inspect"
	"github.com/ajitpratap0/framekit/pkg/logger"
)

const defaultDemoFrames = 120

func newDemoCommand(c *cli) *cobra.Command {
	var format, output string
	var frames, turrets int

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the bullet and turret simulation and print a report",
		Long: `Run a short simulation: the bullet pool is reserved, used and trimmed,
then a number of turret state machines cycle through idle, aim and fire,
spawning bullets from the pool. The final state of both registries is
printed as JSON or YAML.

Example:
  framekit demo --frames 300 --turrets 4 --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := inspect.ParseFormat(format)
			if err != nil {
				return err
			}
			if frames <= 0 {
				frames = defaultDemoFrames
				if c.cfg.Runtime.IsBounded() {
					frames = c.cfg.Runtime.MaxFrames
				}
			}

			report, err := c.runDemo(cmd.Context(), frames, turrets)
			if err != nil {
				return err
			}

			if output != "" {
				file, err := os.Create(output) //nolint:gosec // G304: path is supplied by the operator
				if err != nil {
					return err
				}
				defer file.Close()
				return report.Encode(file, f)
			}
			return report.Encode(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Report format (json, yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().IntVar(&frames, "frames", 0, "Frames to simulate (default runtime.max_frames or 120)")
	cmd.Flags().IntVar(&turrets, "turrets", 3, "Number of turret state machines")
	return cmd
}

// runDemo runs the simulation and returns the report taken right before
// shutdown.
func (c *cli) runDemo(ctx context.Context, frames, turrets int) (*inspect.Report, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, logger.SessionKey, c.cfg.Name)
	log := logger.WithContext(ctx)

	rt, err := c.newRuntime(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rt.Shutdown(ctx); err != nil {
			log.Warn("runtime shutdown failed", zap.Error(err))
		}
	}()

	held, err := bulletScenario(rt)
	if err != nil {
		return nil, err
	}
	log.Info("bullet scenario complete", zap.Int("held", len(held)))

	if err := spawnTurrets(rt, turrets, c.log); err != nil {
		return nil, err
	}
	if err := rt.Step(frames); err != nil {
		return nil, err
	}

	// Bullets held across DiscardAll come back as orphans and are dropped.
	if err := rt.Do(func(pools *cachepool.Registry, _ *fsm.Registry) error {
		for _, b := range held {
			if err := pools.Unspawn(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	log.Info("simulation complete",
		zap.Uint64("frames", rt.Frame()),
		zap.Duration("elapsed", rt.Elapsed()))
	return rt.Report(), nil
}

// demoRuntime is the long-running variant used by serve: it keeps the
// runtime open for the caller to drive.
func (c *cli) demoRuntime(ctx context.Context, turrets int) (*host.Runtime, error) {
	rt, err := c.newRuntime(ctx)
	if err != nil {
		return nil, err
	}
	if err := spawnTurrets(rt, turrets, c.log); err != nil {
		_ = rt.Shutdown(ctx)
		return nil, err
	}
	return rt, nil
}
