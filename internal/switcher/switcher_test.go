package switcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"github.com/ksteinfeldt/switchdeck/internal/config"
	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
	"github.com/ksteinfeldt/switchdeck/internal/vdf"
	"github.com/ksteinfeldt/switchdeck/internal/window"
)

const loginUsersDoc = `"users"
{
	"76561198000000001"
	{
		"AccountName"		"alice"
		"PersonaName"		"Alice"
		"MostRecent"		"1"
		"Timestamp"		"1700000000"
	}
	"76561198000000002"
	{
		"AccountName"		"bob"
		"PersonaName"		"Bob"
		"Timestamp"		"1690000000"
	}
}
`

var (
	alice = vdf.User{SteamID: "76561198000000001", AccountName: "alice"}
	bob   = vdf.User{SteamID: "76561198000000002", AccountName: "bob"}
)

// fakeController records process operations without touching the OS.
type fakeController struct {
	mu         sync.Mutex
	running    bool
	termFail   bool
	launchErr  error
	terminates int
	launches   [][]string
}

func (f *fakeController) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) TerminateAll(ctx context.Context, perProcess time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminates++
	if f.termFail {
		return false, nil
	}
	return true, nil
}

func (f *fakeController) Launch(args ...string) (*os.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.launchErr != nil {
		return nil, f.launchErr
	}
	f.launches = append(f.launches, args)
	return nil, nil
}

func (f *fakeController) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.launches)
}

// fakeStore is an in-memory regstate.Store.
type fakeStore struct {
	state   regstate.LoginState
	readErr error
	// readBack, when set, overrides what Read returns.
	readBack *regstate.LoginState
	writes   int
}

func (f *fakeStore) Read() (regstate.LoginState, error) {
	if f.readErr != nil {
		return regstate.LoginState{}, f.readErr
	}
	if f.readBack != nil {
		return *f.readBack, nil
	}
	return f.state, nil
}

func (f *fakeStore) Write(s regstate.LoginState) error {
	f.state = s
	f.writes++
	return nil
}

func (f *fakeStore) Clear() error {
	f.state = regstate.LoginState{}
	return nil
}

type fixture struct {
	sw    *Switcher
	proc  *fakeController
	store *fakeStore
	users string // loginusers.vdf path
}

// newFixture builds a switcher over fakes with short timeouts. observe
// is called on every verification poll.
func newFixture(t *testing.T, observe func(context.Context) (window.State, error)) *fixture {
	t.Helper()

	old := verifyPollInterval
	verifyPollInterval = 2 * time.Millisecond
	t.Cleanup(func() { verifyPollInterval = old })

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "config"), 0755); err != nil {
		t.Fatal(err)
	}
	usersPath := filepath.Join(root, "config", "loginusers.vdf")
	if err := os.WriteFile(usersPath, []byte(loginUsersDoc), 0644); err != nil {
		t.Fatal(err)
	}
	configDoc := "\"InstallConfigStore\"\n{\n}\n"
	if err := os.WriteFile(filepath.Join(root, "config", "config.vdf"), []byte(configDoc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Timeouts = config.TimeoutSettings{
		Terminate: config.Duration(50 * time.Millisecond),
		Settle:    0,
		Verify:    config.Duration(20 * time.Millisecond),
	}

	proc := &fakeController{}
	store := &fakeStore{}
	install := &steam.Install{Root: root}
	lockPath := filepath.Join(root, "switch.lock")

	sw := New(install, proc, store, observe, cfg, lockPath, nil)
	return &fixture{sw: sw, proc: proc, store: store, users: usersPath}
}

func observeAlways(state window.State) func(context.Context) (window.State, error) {
	return func(context.Context) (window.State, error) { return state, nil }
}

func TestSwitchSucceedsWithFirstStrategy(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))

	res, err := fx.sw.SwitchTo(context.Background(), alice)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !res.Success || res.Busy {
		t.Fatalf("result = %+v, want success", res)
	}
	if res.Strategy != "login-argument" {
		t.Errorf("Strategy = %q, want login-argument", res.Strategy)
	}
	if len(res.Attempts) != 1 {
		t.Errorf("Attempts = %d, want 1", len(res.Attempts))
	}
	if res.RunID == "" {
		t.Error("RunID is empty")
	}
	if fx.proc.terminates == 0 {
		t.Error("Steam was not terminated before the attempt")
	}
	if got := fx.proc.launches; len(got) != 1 || strings.Join(got[0], " ") != "-login alice" {
		t.Errorf("launches = %v, want [-login alice]", got)
	}
}

func TestSwitchFallsThroughToNextStrategy(t *testing.T) {
	var fxRef *fixture
	// The first launch stalls at the login prompt; the second reaches
	// the main session.
	observe := func(context.Context) (window.State, error) {
		if fxRef.proc.launchCount() <= 1 {
			return window.AtLoginPrompt, nil
		}
		return window.AtMainSession, nil
	}
	fxRef = newFixture(t, observe)

	res, err := fxRef.sw.SwitchTo(context.Background(), alice)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !res.Success || res.Strategy != "registry-autologin" {
		t.Fatalf("result = %+v, want registry-autologin success", res)
	}
	if len(res.Attempts) != 2 {
		t.Fatalf("Attempts = %d, want 2", len(res.Attempts))
	}
	if !errors.Is(res.Attempts[0].Err, ErrLoginPrompt) {
		t.Errorf("first attempt err = %v, want ErrLoginPrompt", res.Attempts[0].Err)
	}
	if res.Attempts[0].State != window.AtLoginPrompt {
		t.Errorf("first attempt state = %v, want login prompt", res.Attempts[0].State)
	}
	// Steam is torn down again between attempts.
	if fxRef.proc.terminates < 2 {
		t.Errorf("terminates = %d, want at least 2", fxRef.proc.terminates)
	}
	if fxRef.store.writes == 0 {
		t.Error("registry strategy never wrote the login state")
	}
	if fxRef.store.state.AutoLoginUser != "alice" || !fxRef.store.state.RememberPassword {
		t.Errorf("login state = %+v", fxRef.store.state)
	}
}

func TestConcurrentSwitchReportsBusy(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.sw.inFlight.Store(true)

	res, err := fx.sw.SwitchTo(context.Background(), alice)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !res.Busy || res.Success {
		t.Fatalf("result = %+v, want busy", res)
	}
	if len(res.Attempts) != 0 {
		t.Errorf("busy result has %d attempts, want 0", len(res.Attempts))
	}
	if fx.proc.terminates != 0 {
		t.Error("busy switch touched Steam processes")
	}
}

func TestCrossProcessLockReportsBusy(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))

	other := flock.New(fx.sw.lockPath)
	locked, err := other.TryLock()
	if err != nil || !locked {
		t.Fatalf("pre-acquire lock: locked=%v err=%v", locked, err)
	}
	defer other.Unlock()

	res, err := fx.sw.SwitchTo(context.Background(), alice)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !res.Busy {
		t.Fatalf("result = %+v, want busy", res)
	}
}

func TestUnknownStrategyRejected(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.sw.cfg.Strategies = []string{"login-argument", "warp-drive"}

	_, err := fx.sw.SwitchTo(context.Background(), alice)
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Fatalf("err = %v, want ErrUnknownStrategy", err)
	}
	if fx.proc.terminates != 0 {
		t.Error("terminated Steam despite rejecting the configuration")
	}
}

func TestTerminateFailureStillAttemptsStrategies(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.proc.termFail = true

	res, err := fx.sw.SwitchTo(context.Background(), alice)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success despite failed termination", res)
	}
	if fx.proc.terminates == 0 {
		t.Error("termination was never attempted")
	}
	if len(res.Attempts) == 0 || fx.proc.launchCount() == 0 {
		t.Error("no strategy ran after failed termination")
	}
}

func TestConfigRewriteMissingAccountDoesNotLaunch(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.sw.cfg.Strategies = []string{"config-rewrite"}

	missing := vdf.User{SteamID: "76561198999999999", AccountName: "ghost"}
	res, err := fx.sw.SwitchTo(context.Background(), missing)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if len(res.Attempts) != 1 || !errors.Is(res.Attempts[0].Err, vdf.ErrIDNotFound) {
		t.Fatalf("attempts = %+v, want one ErrIDNotFound", res.Attempts)
	}
	if fx.proc.launchCount() != 0 {
		t.Error("launched Steam with nothing rewritten")
	}

	// The document must be untouched.
	data, _ := os.ReadFile(fx.users)
	if string(data) != loginUsersDoc {
		t.Error("loginusers.vdf was modified")
	}
}

func TestConfigRewriteMarksTargetMostRecent(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.sw.cfg.Strategies = []string{"config-rewrite"}

	res, err := fx.sw.SwitchTo(context.Background(), bob)
	if err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}
	if !res.Success {
		t.Fatalf("result = %+v, want success", res)
	}
	if got := fx.proc.launches; len(got) != 1 || len(got[0]) != 0 {
		t.Errorf("launches = %v, want one plain launch", got)
	}

	data, err := os.ReadFile(fx.users)
	if err != nil {
		t.Fatal(err)
	}
	users, err := vdf.ParseUsers(data)
	if err != nil {
		t.Fatalf("ParseUsers after rewrite: %v", err)
	}
	for _, u := range users {
		want := u.SteamID == bob.SteamID
		if u.MostRecent != want {
			t.Errorf("MostRecent for %s = %v, want %v", u.SteamID, u.MostRecent, want)
		}
	}
}

func TestRegistryReadBackMismatchFailsStrategy(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.sw.cfg.Strategies = []string{"registry-autologin"}
	// The store accepts writes but reads back someone else's login, as
	// happens when another client instance races the switch.
	fx.store.readBack = &regstate.LoginState{AutoLoginUser: "mallory", RememberPassword: true}

	res, err := fx.sw.SwitchTo(context.Background(), alice)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if len(res.Attempts) != 1 || !errors.Is(res.Attempts[0].Err, ErrRegistryMismatch) {
		t.Fatalf("attempts = %+v, want ErrRegistryMismatch", res.Attempts)
	}
	if fx.proc.launchCount() != 0 {
		t.Error("launched Steam on a mismatched registry state")
	}
}

func TestRegistryAutologinRejectsPostLaunchDrift(t *testing.T) {
	var fxRef *fixture
	// The registry is rewritten while Steam comes up, as happens when a
	// manual login lands first.
	observe := func(context.Context) (window.State, error) {
		fxRef.store.readBack = &regstate.LoginState{AutoLoginUser: "mallory", RememberPassword: true}
		return window.AtMainSession, nil
	}
	fxRef = newFixture(t, observe)
	fxRef.sw.cfg.Strategies = []string{"registry-autologin"}

	res, err := fxRef.sw.SwitchTo(context.Background(), alice)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if res.Success {
		t.Fatal("session reported success with someone else's login in the registry")
	}
	if len(res.Attempts) != 1 || !errors.Is(res.Attempts[0].Err, ErrRegistryMismatch) {
		t.Fatalf("attempts = %+v, want ErrRegistryMismatch", res.Attempts)
	}
	// The launch itself went through; only verification failed.
	if fxRef.proc.launchCount() != 1 {
		t.Errorf("launches = %d, want 1", fxRef.proc.launchCount())
	}
}

func TestConfigRewriteRejectsMarkerDrift(t *testing.T) {
	var fxRef *fixture
	// Another login moves the marker back to alice while we wait for
	// the session window.
	observe := func(context.Context) (window.State, error) {
		data, err := os.ReadFile(fxRef.users)
		if err != nil {
			t.Fatal(err)
		}
		out, err := vdf.SetMostRecent(data, alice.SteamID)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fxRef.users, out, 0644); err != nil {
			t.Fatal(err)
		}
		return window.AtMainSession, nil
	}
	fxRef = newFixture(t, observe)
	fxRef.sw.cfg.Strategies = []string{"config-rewrite"}

	res, err := fxRef.sw.SwitchTo(context.Background(), bob)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if res.Success {
		t.Fatal("success claimed while the marker sits on another account")
	}
	if len(res.Attempts) != 1 || !errors.Is(res.Attempts[0].Err, ErrMarkerDrift) {
		t.Fatalf("attempts = %+v, want ErrMarkerDrift", res.Attempts)
	}
}

func TestIndeterminateIsNeverSuccess(t *testing.T) {
	fx := newFixture(t, observeAlways(window.Indeterminate))
	fx.sw.cfg.Strategies = []string{"login-argument"}
	fx.proc.running = true

	res, err := fx.sw.SwitchTo(context.Background(), alice)
	if !errors.Is(err, ErrAllStrategiesFailed) {
		t.Fatalf("err = %v, want ErrAllStrategiesFailed", err)
	}
	if res.Success {
		t.Fatal("indeterminate window state was reported as success")
	}
	if !errors.Is(res.Attempts[0].Err, ErrVerificationIndeterminate) {
		t.Errorf("attempt err = %v, want ErrVerificationIndeterminate", res.Attempts[0].Err)
	}
}

func TestVerificationTimeoutWhenSteamDies(t *testing.T) {
	fx := newFixture(t, observeAlways(window.Indeterminate))
	fx.sw.cfg.Strategies = []string{"login-argument"}
	fx.proc.running = false

	res, _ := fx.sw.SwitchTo(context.Background(), alice)
	if !errors.Is(res.Attempts[0].Err, ErrVerificationTimeout) {
		t.Errorf("attempt err = %v, want ErrVerificationTimeout", res.Attempts[0].Err)
	}
}

func TestPersonaStateAppliedAfterSuccess(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtMainSession))
	fx.sw.cfg.PersonaState = steam.PersonaOnline

	if _, err := fx.sw.SwitchTo(context.Background(), alice); err != nil {
		t.Fatalf("SwitchTo: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(filepath.Dir(fx.users), "config.vdf"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"PersonaState"		"1"`) {
		t.Error("persona state was not written after a verified switch")
	}
}

func TestCancelledContextStopsPipeline(t *testing.T) {
	fx := newFixture(t, observeAlways(window.AtLoginPrompt))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fx.sw.SwitchTo(ctx, alice)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
