package doctor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ksteinfeldt/switchdeck/internal/config"
	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

// InstallCheck verifies the Steam install directory was found.
type InstallCheck struct {
	BaseCheck
}

func NewInstallCheck() *InstallCheck {
	return &InstallCheck{BaseCheck{
		CheckName:        "steam-install",
		CheckDescription: "Verify the Steam install directory exists",
	}}
}

func (c *InstallCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.Install == nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Steam install not found",
			Details: []string{fmt.Sprintf("discovery error: %v", ctx.InstallErr)},
			FixHint: "Set steam_root in the config file if Steam lives somewhere unusual",
		}
	}
	if info, err := os.Stat(ctx.Install.Root); err != nil || !info.IsDir() {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("Steam root %s is not a directory", ctx.Install.Root),
			FixHint: "Fix or remove the steam_root override",
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "Steam install at " + ctx.Install.Root,
	}
}

// ExecutableCheck verifies the Steam binary is present and launchable.
type ExecutableCheck struct {
	BaseCheck
}

func NewExecutableCheck() *ExecutableCheck {
	return &ExecutableCheck{BaseCheck{
		CheckName:        "steam-executable",
		CheckDescription: "Verify the Steam executable is present",
	}}
}

func (c *ExecutableCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.Install == nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "Skipped: no Steam install",
		}
	}
	exe, err := ctx.Install.Executable()
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Steam executable not found",
			Details: []string{fmt.Sprintf("looked under %s", ctx.Install.Root)},
			FixHint: "Reinstall Steam or point steam_root at the real install",
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "Executable at " + exe,
	}
}

// LoginUsersCheck verifies loginusers.vdf exists and parses.
type LoginUsersCheck struct {
	BaseCheck
}

func NewLoginUsersCheck() *LoginUsersCheck {
	return &LoginUsersCheck{BaseCheck{
		CheckName:        "loginusers",
		CheckDescription: "Verify loginusers.vdf is present and parseable",
	}}
}

func (c *LoginUsersCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.Install == nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "Skipped: no Steam install",
		}
	}

	path := ctx.Install.LoginUsersPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &CheckResult{
				Name:    c.Name(),
				Status:  StatusWarning,
				Message: "No loginusers.vdf; no account has signed in yet",
				FixHint: "Sign in to Steam once so it records the account",
			}
		}
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("Cannot read %s", path),
			Details: []string{err.Error()},
		}
	}

	users, err := vdf.ParseUsers(data)
	if err != nil {
		var syntaxErr *vdf.SyntaxError
		details := []string{err.Error()}
		if errors.As(err, &syntaxErr) {
			details = append(details, fmt.Sprintf("at byte offset %d", syntaxErr.Offset))
		}
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "loginusers.vdf does not parse",
			Details: details,
			FixHint: "Steam rewrites the file on next clean exit",
		}
	}

	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: fmt.Sprintf("%d known account(s)", len(users)),
	}
}

// RegistryCheck verifies the login preference store is reachable.
type RegistryCheck struct {
	BaseCheck
}

func NewRegistryCheck() *RegistryCheck {
	return &RegistryCheck{BaseCheck{
		CheckName:        "login-state",
		CheckDescription: "Verify the auto-login preference store is readable",
	}}
}

func (c *RegistryCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.Store == nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "Skipped: no preference store",
		}
	}
	state, err := ctx.Store.Read()
	if err != nil {
		status := StatusError
		hint := ""
		if errors.Is(err, regstate.ErrAccessDenied) {
			hint = "Run from the same user account that runs Steam"
		}
		return &CheckResult{
			Name:    c.Name(),
			Status:  status,
			Message: "Cannot read login state",
			Details: []string{err.Error()},
			FixHint: hint,
		}
	}
	msg := "Login state readable"
	if state.AutoLoginUser != "" {
		msg = "Auto-login set to " + state.AutoLoginUser
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: msg,
	}
}

// LockCheck verifies the switch guard file can be created.
type LockCheck struct {
	BaseCheck
}

func NewLockCheck() *LockCheck {
	return &LockCheck{BaseCheck{
		CheckName:        "switch-lock",
		CheckDescription: "Verify the switch lock file is writable",
	}}
}

func (c *LockCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.LockPath == "" {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "Skipped: no lock path configured",
		}
	}
	if err := os.MkdirAll(filepath.Dir(ctx.LockPath), 0755); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Cannot create lock directory",
			Details: []string{err.Error()},
		}
	}
	f, err := os.OpenFile(ctx.LockPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: fmt.Sprintf("Cannot open %s", ctx.LockPath),
			Details: []string{err.Error()},
			FixHint: "Check permissions on the directory",
		}
	}
	f.Close()
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "Lock file writable",
	}
}

// ConfigCheck verifies switchdeck's own config parses.
type ConfigCheck struct {
	BaseCheck
}

func NewConfigCheck() *ConfigCheck {
	return &ConfigCheck{BaseCheck{
		CheckName:        "config",
		CheckDescription: "Verify the switchdeck config file parses",
	}}
}

func (c *ConfigCheck) Run(ctx *CheckContext) *CheckResult {
	if ctx.ConfigPath == "" {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusWarning,
			Message: "Skipped: no config path",
		}
	}
	if _, err := os.Stat(ctx.ConfigPath); os.IsNotExist(err) {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusOK,
			Message: "No config file (defaults apply)",
		}
	}
	if _, err := config.Load(ctx.ConfigPath); err != nil {
		return &CheckResult{
			Name:    c.Name(),
			Status:  StatusError,
			Message: "Config file does not parse",
			Details: []string{err.Error()},
			FixHint: "Fix or delete " + ctx.ConfigPath,
		}
	}
	return &CheckResult{
		Name:    c.Name(),
		Status:  StatusOK,
		Message: "Config OK",
	}
}
