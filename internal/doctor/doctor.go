// Package doctor runs environment diagnostics: is Steam where we think
// it is, can we read its config, can we take the switch lock. The
// checks mirror what a switch would touch, so a clean doctor run means
// a switch has a fighting chance.
package doctor

import (
	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
)

// Status is the outcome class of a single check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name    string
	Status  Status
	Message string

	// Details carries extra context lines for verbose output.
	Details []string

	// FixHint tells the user what to do about a non-OK result.
	FixHint string
}

// CheckContext carries the environment checks run against.
type CheckContext struct {
	// Install is the discovered Steam install, nil when discovery
	// failed.
	Install *steam.Install

	// InstallErr is the discovery error when Install is nil.
	InstallErr error

	// Store is the login preference store.
	Store regstate.Store

	// ConfigPath is switchdeck's own config file.
	ConfigPath string

	// LockPath is the cross-process switch guard file.
	LockPath string
}

// Check is a single diagnostic.
type Check interface {
	Name() string
	Description() string
	Run(ctx *CheckContext) *CheckResult
}

// BaseCheck provides the Name/Description boilerplate.
type BaseCheck struct {
	CheckName        string
	CheckDescription string
}

func (c *BaseCheck) Name() string        { return c.CheckName }
func (c *BaseCheck) Description() string { return c.CheckDescription }

// AllChecks returns every check in run order.
func AllChecks() []Check {
	return []Check{
		NewInstallCheck(),
		NewExecutableCheck(),
		NewLoginUsersCheck(),
		NewRegistryCheck(),
		NewLockCheck(),
		NewConfigCheck(),
	}
}

// RunAll executes checks and reports whether any returned an error
// status.
func RunAll(ctx *CheckContext, checks []Check) (results []*CheckResult, healthy bool) {
	healthy = true
	for _, c := range checks {
		res := c.Run(ctx)
		results = append(results, res)
		if res.Status == StatusError {
			healthy = false
		}
	}
	return results, healthy
}
