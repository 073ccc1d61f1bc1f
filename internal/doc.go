// Package internal contains the implementation packages of assetpipe.
//
// # Package Organization
//
//   - config: Viper-backed configuration with defaults and validation
//   - errors: PipelineError, the structured error every task reports
//   - logging: structured logging on log/slog with performance helpers
//   - metrics: task and reload metrics behind a Recorder interface
//   - source: glob resolution of source files per resource kind
//   - transform: content transformers (include, HTML formatting, LESS,
//     minification, image re-encoding, SVG sprites)
//   - pipeline: task registry, build sequence and the runner
//   - tasks: the eight build tasks
//   - watcher: fsnotify watching with debouncing
//   - devloop: watch groups and the serial rerun loop
//   - server: dev server, reload hub and error overlay
//   - version: build metadata
//
// # Inter-Package Communication
//
//   - Tasks read a Source Set through pipeline.Env and write under the
//     destination root
//   - The watcher feeds changed paths to the devloop, which debounces per
//     watch group and reruns the group's tasks through the runner
//   - After every rerun the devloop signals the server's reload hub, which
//     tells connected browsers to reload or show an error overlay
package internal
