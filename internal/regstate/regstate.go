// Package regstate reads and writes Steam's auto-login preference
// state. On Windows that state lives in the registry under the Valve
// key; on other platforms Steam keeps the same keys in a registry.vdf
// file. Either way it is a globally shared resource owned by the OS
// and the client, not by us: callers must re-read after writing rather
// than trust their own last write, because a manual login can race any
// switch.
package regstate

import "errors"

// ErrAccessDenied indicates the preference store exists but cannot be
// opened for the requested access.
var ErrAccessDenied = errors.New("registry access denied")

// LoginState is the auto-login preference snapshot.
type LoginState struct {
	// AutoLoginUser is the account name Steam logs in automatically.
	AutoLoginUser string

	// RememberPassword mirrors the client's "remember me" checkbox.
	RememberPassword bool

	// LoginUser is the last account the client saw log in.
	LoginUser string
}

// Store is the preference store surface the orchestrator uses.
type Store interface {
	// Read returns the current state. A missing store reads as the
	// zero state, not an error.
	Read() (LoginState, error)

	// Write persists the state.
	Write(LoginState) error

	// Clear removes the auto-login keys entirely.
	Clear() error
}
