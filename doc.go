// Package framekit provides the runtime building blocks of a frame-driven
// simulation: a type-keyed object pool and a generic finite state machine
// engine, plus a host that drives both on a fixed-step loop.
//
// # Architecture
//
// Framekit is organized around two registries that a game or simulation
// owns for its whole lifetime:
//
// 1. Object pool (pkg/cachepool): one Collection of idle instances per
// poolable type. Spawn reuses the most recently returned instance, Unspawn
// gives it back, Reserve pre-warms and Discard trims.
//
// 2. State machines (pkg/fsm): an FSM[T] binds an owner of type T to a fixed
// set of State[T] values. The Registry keys machines by owner type and name
// and ticks every running machine once per frame. Destroyed machines are
// recycled through the object pool.
//
// The host (internal/host) wires both registries to the configuration,
// advances frames with a scaled and an unscaled delta, and shuts everything
// down in order.
//
// # Quick Start
//
//	pools := cachepool.NewRegistry()
//	machines := fsm.NewRegistry(fsm.WithMachinePool(pools))
//
//	door, err := fsm.Create(machines, "hinge", &Door{}, fsm.State[*Door](&Closed{}), &Open{})
//	if err != nil {
//	    return err
//	}
//	_ = fsm.Start[*Closed](door)
//
//	for {
//	    machines.Update(delta, unscaledDelta)
//	}
//
// # Key Packages
//
//	pkg/cachepool     - Type-keyed object pool with lifetime counters
//	pkg/fsm           - Generic state machines and their registry
//	pkg/config        - Runtime configuration (YAML, env overrides)
//	pkg/errors        - Structured error handling
//	pkg/logger        - Structured logging
//	pkg/metrics       - Prometheus collectors for pools and machines
//	pkg/inspect       - JSON/YAML diagnostic reports
//	pkg/observability - OpenTelemetry tracing
//	internal/host     - Fixed-step runtime host
//	cmd/framekit      - Demo, stats and metrics server CLI
//
// # Configuration
//
// The host reads a single config.Config:
//
//	type Config struct {
//	    Logging       logger.Config        // Level, encoding, outputs
//	    Pool          PoolConfig           // Strict type checks, prewarm counts
//	    FSM           FSMConfig            // Shared machine pool
//	    Runtime       RuntimeConfig        // Frame rate, time scale, frame limit
//	    Observability ObservabilityConfig  // Metrics endpoint, tracing
//	}
//
// Environment variables are supported with ${VAR_NAME} syntax inside the
// file and FRAMEKIT_SECTION_KEY overrides.
//
// # Development
//
//	go test ./...
//	go run ./cmd/framekit demo --format yaml
//	go run ./cmd/framekit serve --addr :9090
package framekit
