// Package supervisor owns the lifecycle of the local llama.cpp server
// process. It is structured into small files by concern:
//
//   - supervisor.go: Supervisor type, Start/Stop/IsRunning, the readiness loop and Poll.
//   - config.go: Config, Options and package defaults.
//   - resources.go: thread and GPU layer resolution.
//   - watchdog.go: spawning the inferd-watchdog process and feeding it heartbeats.
//   - events.go: lifecycle events and the in-memory publisher used by tests.
//   - errors.go: ProcessLaunchError and ModelLoadError.
//   - ports.go: free port selection for Port=0.
//   - tail.go: bounded stderr capture for load failure diagnostics.
//
// At most one server process exists per Supervisor. Start and Stop
// serialize against each other; everything else reads a snapshot.
package supervisor
