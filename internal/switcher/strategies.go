package switcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
	"github.com/ksteinfeldt/switchdeck/internal/vdf"
	"github.com/ksteinfeldt/switchdeck/internal/window"
)

// ErrRegistryMismatch means the login state read back from the registry
// does not match what was just written.
var ErrRegistryMismatch = errors.New("registry did not retain the written login state")

// ErrMarkerDrift means loginusers.vdf no longer marked the target as
// most recent when verification re-read it.
var ErrMarkerDrift = errors.New("most-recent marker is not on the target account")

// Strategy is one way of putting Steam into the target account's
// session. Execute performs the switch; Verify confirms it took by
// watching the windows Steam actually presents.
type Strategy interface {
	Name() string
	Execute(ctx context.Context) error
	Verify(ctx context.Context) (window.State, error)
}

// StrategyNames lists the strategies this build knows, in default
// order.
func StrategyNames() []string {
	return []string{"login-argument", "registry-autologin", "config-rewrite"}
}

// buildStrategies resolves the configured order into strategy values
// bound to the target account.
func (s *Switcher) buildStrategies(target vdf.User) ([]Strategy, error) {
	var out []Strategy
	for _, name := range s.cfg.Strategies {
		switch name {
		case "login-argument":
			out = append(out, &loginArgument{s: s, target: target})
		case "registry-autologin":
			out = append(out, &registryAutologin{s: s, target: target})
		case "config-rewrite":
			out = append(out, &configRewrite{s: s, target: target})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no strategies configured", ErrUnknownStrategy)
	}
	return out, nil
}

// rewriteVDF applies fn to a VDF document on disk and writes the
// result back, preserving the file's mode.
func (s *Switcher) rewriteVDF(path string, fn func([]byte) ([]byte, error)) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	updated, err := fn(data)
	if err != nil {
		return err
	}
	if string(updated) == string(data) {
		return nil
	}

	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, updated, mode); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// loginArgument launches Steam with -login so Steam picks the cached
// credentials for the account. Fastest path when credentials are
// cached; falls through to the prompt when they are not.
type loginArgument struct {
	s      *Switcher
	target vdf.User
}

func (a *loginArgument) Name() string { return "login-argument" }

func (a *loginArgument) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := a.s.proc.Launch(steam.LoginArgs(a.target.AccountName)...); err != nil {
		return fmt.Errorf("launch with login argument: %w", err)
	}
	return nil
}

func (a *loginArgument) Verify(ctx context.Context) (window.State, error) {
	return a.s.awaitSession(ctx)
}

// registryAutologin primes AutoLoginUser before a plain launch. The
// written state is read back before launching; registry writes can
// silently go nowhere under restricted accounts.
type registryAutologin struct {
	s      *Switcher
	target vdf.User
}

func (a *registryAutologin) Name() string { return "registry-autologin" }

func (a *registryAutologin) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	want := regstate.LoginState{
		AutoLoginUser:    a.target.AccountName,
		RememberPassword: true,
		LoginUser:        a.target.AccountName,
	}
	if err := a.s.store.Write(want); err != nil {
		return fmt.Errorf("write login state: %w", err)
	}

	got, err := a.s.store.Read()
	if err != nil {
		return fmt.Errorf("read back login state: %w", err)
	}
	if got.AutoLoginUser != want.AutoLoginUser || !got.RememberPassword {
		return fmt.Errorf("%w: got %q", ErrRegistryMismatch, got.AutoLoginUser)
	}

	if _, err := a.s.proc.Launch(); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	return nil
}

func (a *registryAutologin) Verify(ctx context.Context) (window.State, error) {
	state, err := a.s.awaitSession(ctx)
	if err != nil {
		return state, err
	}

	// The session window alone does not say who Steam logged in as.
	// Re-read the registry; Steam rewrites AutoLoginUser on login, so
	// a different name here means another account took the session.
	got, err := a.s.store.Read()
	if err != nil {
		return state, fmt.Errorf("re-read login state: %w", err)
	}
	if got.AutoLoginUser != a.target.AccountName {
		return state, fmt.Errorf("%w: got %q", ErrRegistryMismatch, got.AutoLoginUser)
	}
	return state, nil
}

// configRewrite marks the target as the most recent account in
// loginusers.vdf and relies on Steam's own pick-last-user behavior on
// a plain launch. When the account is not in the document there is
// nothing to rewrite; Steam is not launched.
type configRewrite struct {
	s      *Switcher
	target vdf.User
}

func (a *configRewrite) Name() string { return "config-rewrite" }

func (a *configRewrite) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := a.s.rewriteVDF(a.s.install.LoginUsersPath(), func(content []byte) ([]byte, error) {
		return vdf.SetMostRecent(content, a.target.SteamID)
	})
	if err != nil {
		if errors.Is(err, vdf.ErrIDNotFound) {
			return fmt.Errorf("account %s not present in loginusers.vdf: %w", a.target.SteamID, err)
		}
		return err
	}

	if _, err := a.s.proc.Launch(); err != nil {
		return fmt.Errorf("launch: %w", err)
	}
	return nil
}

func (a *configRewrite) Verify(ctx context.Context) (window.State, error) {
	state, err := a.s.awaitSession(ctx)
	if err != nil {
		return state, err
	}

	// Re-read the document rather than trusting our own write. A manual
	// login during the wait moves the marker to whoever logged in.
	data, err := os.ReadFile(a.s.install.LoginUsersPath())
	if err != nil {
		return state, fmt.Errorf("re-read loginusers.vdf: %w", err)
	}
	users, err := vdf.ParseUsers(data)
	if err != nil {
		return state, fmt.Errorf("re-read loginusers.vdf: %w", err)
	}
	marked := false
	for _, u := range users {
		if !u.MostRecent {
			continue
		}
		if u.SteamID != a.target.SteamID {
			return state, fmt.Errorf("%w: %s is marked instead", ErrMarkerDrift, u.SteamID)
		}
		marked = true
	}
	if !marked {
		return state, ErrMarkerDrift
	}
	return state, nil
}
