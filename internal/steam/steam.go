// Package steam knows where a local Steam install keeps the files and
// processes the switcher cares about: the login records, the settings
// document, the client executable, and the helper-process family.
package steam

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrInstallNotFound indicates no Steam install root could be
	// located on this machine.
	ErrInstallNotFound = errors.New("steam install not found")

	// ErrExecutableNotFound indicates the install root exists but the
	// client executable is missing. No switch strategy can work without
	// it.
	ErrExecutableNotFound = errors.New("steam executable not found")
)

// Persona states as stored in config.vdf.
const (
	PersonaOffline        = 0
	PersonaOnline         = 1
	PersonaBusy           = 2
	PersonaAway           = 3
	PersonaSnooze         = 4
	PersonaLookingToTrade = 5
	PersonaLookingToPlay  = 6
)

// Install describes a located Steam installation.
type Install struct {
	// Root is the install directory.
	Root string
}

// Find locates the Steam install. An explicit override wins; otherwise
// the platform-specific discovery runs (registry on Windows, known
// home-relative paths elsewhere).
func Find(override string) (*Install, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return nil, fmt.Errorf("%w: configured root %s", ErrInstallNotFound, override)
		}
		return &Install{Root: override}, nil
	}

	root, err := discoverRoot()
	if err != nil {
		return nil, err
	}
	return &Install{Root: root}, nil
}

// LoginUsersPath returns the path of the identity-record document.
func (i *Install) LoginUsersPath() string {
	return filepath.Join(i.Root, "config", "loginusers.vdf")
}

// ConfigPath returns the path of the client settings document.
func (i *Install) ConfigPath() string {
	return filepath.Join(i.Root, "config", "config.vdf")
}

// RegistryVDFPath returns the path of the file-backed registry Steam
// maintains on non-Windows platforms.
func (i *Install) RegistryVDFPath() string {
	return filepath.Join(filepath.Dir(i.Root), "registry.vdf")
}

// Executable returns the path of the client binary, or
// ErrExecutableNotFound if it does not exist.
func (i *Install) Executable() (string, error) {
	path := filepath.Join(i.Root, executableName)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", ErrExecutableNotFound, path)
	}
	return path, nil
}

// LoginArgs builds the command line that asks Steam to start straight
// into the given account.
func LoginArgs(accountName string) []string {
	return []string{"-login", accountName}
}

// AppLaunchArgs builds the command line that asks Steam to launch a
// game immediately after start. This is a passthrough convenience, not
// part of switching.
func AppLaunchArgs(appID string) []string {
	return []string{"-applaunch", appID}
}

// Family lists the executable names of Steam's process family: the main
// client plus the helpers that must die with it for a clean relaunch.
type Family struct {
	// Main is the client executable name.
	Main string

	// WebHelper is the embedded web-rendering helper. Modern clients
	// host the login UI here, so the window classifier treats it as a
	// first-class member.
	WebHelper string

	// Aux are the remaining helpers (background service, overlay).
	Aux []string
}

// All returns every executable name in the family, main first.
func (f Family) All() []string {
	out := make([]string, 0, 2+len(f.Aux))
	out = append(out, f.Main, f.WebHelper)
	out = append(out, f.Aux...)
	return out
}

// Contains reports whether name (a bare executable name) belongs to the
// family.
func (f Family) Contains(name string) bool {
	for _, n := range f.All() {
		if n == name {
			return true
		}
	}
	return false
}

// IsUIHost reports whether name is a process that can own client UI
// windows: the main client or the web helper.
func (f Family) IsUIHost(name string) bool {
	return name == f.Main || name == f.WebHelper
}

// ProcessFamily returns the family for the current platform.
func ProcessFamily() Family {
	return processFamily
}
