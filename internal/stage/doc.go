// Package stage defines pipeline stages and the executor that runs them.
//
// A Definition names an external unit of work with templated arguments,
// required inputs, and an optional declared output. Executor.Run expands the
// templates against the workspace placeholder table, checks inputs, launches
// the work through a Driver, and condenses the result into an Outcome.
// Failures are outcomes, not errors; the runner decides what they mean for
// the job.
//
// Drivers:
//   - command: child process in its own process group, stderr tail captured
//   - drapto: in-process AV1 encode for the re-encode step
//
// Built-in definitions come from DefaultDefinitions; a YAML manifest can
// replace them (LoadManifest, Load).
package stage
