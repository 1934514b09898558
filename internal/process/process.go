// Package process manages the Steam process family as a unit: detect,
// force-terminate, relaunch.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/ksteinfeldt/switchdeck/internal/steam"
)

// ErrTerminationTimeout indicates at least one family process did not
// confirm exit within its bounded wait.
var ErrTerminationTimeout = errors.New("process termination timed out")

// exitPollInterval is how often exit confirmation re-checks a pid.
const exitPollInterval = 50 * time.Millisecond

// Info identifies one running process.
type Info struct {
	PID  int
	Name string
}

// Controller manages the Steam client's OS processes. The production
// implementation is SteamController; fakes implement this in tests of
// the orchestrator.
type Controller interface {
	// IsRunning reports whether any family process exists.
	IsRunning() bool

	// TerminateAll force-kills every family process and waits up to
	// perProcess for each to confirm exit. Returns true only when all
	// are confirmed stopped. Hard kill by design: switch latency is
	// worth more than unsaved client state here.
	TerminateAll(ctx context.Context, perProcess time.Duration) (bool, error)

	// Launch starts the client executable with the given arguments and
	// returns without waiting for it to initialize. Readiness is the
	// window classifier's problem.
	Launch(args ...string) (*os.Process, error)
}

// Platform glue, swappable in tests.
var (
	listProcesses = platformListProcesses
	killProcess   = platformKill
	processAlive  = platformAlive
)

// SteamController is the production Controller over the local OS.
type SteamController struct {
	exe    string
	family steam.Family
	log    *zap.Logger
}

// NewController builds a controller for the given executable path and
// process family.
func NewController(exe string, family steam.Family, log *zap.Logger) *SteamController {
	if log == nil {
		log = zap.NewNop()
	}
	return &SteamController{exe: exe, family: family, log: log}
}

// familyProcesses snapshots currently running family members.
func (c *SteamController) familyProcesses() []Info {
	all, err := listProcesses()
	if err != nil {
		c.log.Warn("process enumeration failed", zap.Error(err))
		return nil
	}
	var out []Info
	for _, p := range all {
		if c.family.Contains(p.Name) {
			out = append(out, p)
		}
	}
	return out
}

// IsRunning reports whether any family process exists.
func (c *SteamController) IsRunning() bool {
	return len(c.familyProcesses()) > 0
}

// TerminateAll force-terminates every family process. The main client
// is killed last so helpers cannot be respawned by a still-live parent.
func (c *SteamController) TerminateAll(ctx context.Context, perProcess time.Duration) (bool, error) {
	procs := c.familyProcesses()
	if len(procs) == 0 {
		return true, nil
	}

	// Helpers first, main last.
	ordered := make([]Info, 0, len(procs))
	for _, p := range procs {
		if p.Name != c.family.Main {
			ordered = append(ordered, p)
		}
	}
	for _, p := range procs {
		if p.Name == c.family.Main {
			ordered = append(ordered, p)
		}
	}

	allStopped := true
	var firstErr error
	for _, p := range ordered {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		c.log.Debug("terminating", zap.Int("pid", p.PID), zap.String("name", p.Name))
		if err := killProcess(p.PID); err != nil {
			// Racing a process that already exited is fine; anything
			// else is recorded but does not stop the sweep.
			if processAlive(p.PID) {
				allStopped = false
				if firstErr == nil {
					firstErr = fmt.Errorf("killing %s (pid %d): %w", p.Name, p.PID, err)
				}
				continue
			}
		}
		if !c.waitExit(ctx, p.PID, perProcess) {
			allStopped = false
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s (pid %d)", ErrTerminationTimeout, p.Name, p.PID)
			}
		}
	}

	return allStopped, firstErr
}

// waitExit polls for process exit up to the timeout.
func (c *SteamController) waitExit(ctx context.Context, pid int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if !processAlive(pid) {
			return true
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return false
		}
		time.Sleep(exitPollInterval)
	}
}

// Launch starts the client with the given arguments.
func (c *SteamController) Launch(args ...string) (*os.Process, error) {
	cmd := exec.Command(c.exe, args...)
	detach(cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launching %s: %w", c.exe, err)
	}
	c.log.Info("launched client", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", args))

	// Reap the child in the background so it never zombies; the client
	// outliving us is the normal case.
	go func() { _ = cmd.Wait() }()

	return cmd.Process, nil
}

// ExecutableName resolves a pid to its bare executable name, or ""
// when the process is gone or unreadable. The window classifier uses
// this to correlate windows to the family.
func ExecutableName(pid int) string {
	return platformExecutableName(pid)
}
