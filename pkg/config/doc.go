// Package config provides configuration management for framekit runtimes.
//
// # Loading
//
//	cfg, err := config.Load("framekit.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Load starts from the defaults of NewConfig, merges the YAML file on top
// and finally applies environment overrides. Every key can be overridden
// with a FRAMEKIT_ variable whose name is the upper-cased key path joined
// by underscores:
//
//	FRAMEKIT_RUNTIME_FRAME_RATE=30
//	FRAMEKIT_LOGGING_LEVEL=debug
//
// # Environment Variable Substitution
//
//	# framekit.yaml
//	name: arena
//	observability:
//	  metrics_addr: ${METRICS_ADDR}
//
// # Pre-warming
//
// The pool section names the types to reserve at startup. Names refer to
// the host's type catalog, not to Go type names, and are matched
// case-insensitively:
//
//	pool:
//	  strict_check: true
//	  prewarm:
//	    bullet: 64
//	    spark: 16
//
// The result of Load is always validated; Validate reports the first
// invalid field as an errors.ErrorTypeConfig error.
package config
