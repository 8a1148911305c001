// Package control
// Author: momentics <momentics@gmail.com>
//
// Configuration, runtime metrics and debug introspection layer shared by the
// processors and the dispatcher.
//
// Provides:
//   - Functional options carrying name, logger, metrics and probes
//   - Prometheus metrics with nil-safe recording helpers
//   - YAML configuration with defaults and validation
//   - Debug probe registration and state export
package control
