// Package switcher orchestrates account switches: shut Steam down, try
// switch strategies in order, and verify each attempt against the
// actual window state before claiming success.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ksteinfeldt/switchdeck/internal/config"
	"github.com/ksteinfeldt/switchdeck/internal/notify"
	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
	"github.com/ksteinfeldt/switchdeck/internal/vdf"
	"github.com/ksteinfeldt/switchdeck/internal/window"
)

var (
	// ErrUnknownStrategy means the configured strategy order names a
	// strategy this build does not have.
	ErrUnknownStrategy = errors.New("unknown strategy")

	// ErrLoginPrompt means Steam came up at the credential prompt, so
	// the automated switch did not take.
	ErrLoginPrompt = errors.New("Steam is waiting at the login prompt")

	// ErrVerificationTimeout means Steam never presented a window we
	// could classify as a session within the verify window.
	ErrVerificationTimeout = errors.New("timed out waiting for a Steam session")

	// ErrVerificationIndeterminate means the window state never
	// resolved. Indeterminate is not success.
	ErrVerificationIndeterminate = errors.New("could not determine Steam's state")

	// ErrAllStrategiesFailed means every configured strategy was
	// attempted and none produced a verified session.
	ErrAllStrategiesFailed = errors.New("all switch strategies failed")
)

// verifyPollInterval is how often the window state is sampled during
// verification. Shortened in tests.
var verifyPollInterval = 500 * time.Millisecond

// Controller is the slice of process control the switcher needs.
// *process.SteamController satisfies it.
type Controller interface {
	IsRunning() bool
	TerminateAll(ctx context.Context, perProcess time.Duration) (bool, error)
	Launch(args ...string) (*os.Process, error)
}

// Attempt records one strategy's outcome for diagnostics.
type Attempt struct {
	Strategy string
	State    window.State
	Duration time.Duration
	Err      error
}

// Result is the outcome of a SwitchTo call.
type Result struct {
	// Success means a strategy produced a verified main session.
	Success bool

	// Busy means another switch held the guard; nothing was attempted
	// and Attempts is empty.
	Busy bool

	// Strategy is the winning strategy's name when Success is set.
	Strategy string

	// RunID correlates log lines and notifications for this switch.
	RunID string

	Attempts []Attempt
}

// Switcher drives the switch pipeline.
type Switcher struct {
	install  *steam.Install
	proc     Controller
	store    regstate.Store
	cfg      *config.Config
	log      *zap.Logger
	lockPath string

	// observe samples the current Steam window state.
	observe func(context.Context) (window.State, error)

	inFlight atomic.Bool
}

// New builds a Switcher over real collaborators. lockPath is the
// cross-process guard file.
func New(install *steam.Install, proc Controller, store regstate.Store, observe func(context.Context) (window.State, error), cfg *config.Config, lockPath string, log *zap.Logger) *Switcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Switcher{
		install:  install,
		proc:     proc,
		store:    store,
		observe:  observe,
		cfg:      cfg,
		log:      log,
		lockPath: lockPath,
	}
}

// SwitchTo switches Steam to the target account. Only one switch may
// run at a time, across goroutines and across processes; a second
// caller gets a Busy result, not an error.
func (s *Switcher) SwitchTo(ctx context.Context, target vdf.User) (*Result, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return &Result{Busy: true}, nil
	}
	defer s.inFlight.Store(false)

	guard := flock.New(s.lockPath)
	locked, err := guard.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire switch lock: %w", err)
	}
	if !locked {
		return &Result{Busy: true}, nil
	}
	defer guard.Unlock()

	res := &Result{RunID: uuid.NewString()}
	log := s.log.With(
		zap.String("run_id", res.RunID),
		zap.String("account", target.AccountName),
	)

	log.Info("switch starting", zap.String("steam_id", target.SteamID))
	notify.Publish(notify.Event{RunID: res.RunID, Message: "switch starting: " + target.AccountName})

	strategies, err := s.buildStrategies(target)
	if err != nil {
		return nil, err
	}

	// Termination failure is logged, not fatal. The login-argument
	// strategy relaunches with -login and can displace a running
	// client, and a stubborn process should not cost us the attempt.
	if ok, err := s.proc.TerminateAll(ctx, s.cfg.Timeouts.Terminate.Value()); err != nil || !ok {
		log.Warn("could not terminate Steam, proceeding anyway",
			zap.Bool("stopped", ok), zap.Error(err))
	}

	if err := sleepCtx(ctx, s.cfg.Timeouts.Settle.Value()); err != nil {
		return res, err
	}

	var lastErr error
	for i, strat := range strategies {
		if i > 0 {
			// A failed attempt may have left Steam running at a
			// prompt; clear the slate before the next one.
			if ok, err := s.proc.TerminateAll(ctx, s.cfg.Timeouts.Terminate.Value()); err != nil || !ok {
				log.Warn("could not terminate Steam between attempts",
					zap.Bool("stopped", ok), zap.Error(err))
			}
			if err := sleepCtx(ctx, s.cfg.Timeouts.Settle.Value()); err != nil {
				return res, err
			}
		}

		attempt := s.runStrategy(ctx, strat, res.RunID, log)
		res.Attempts = append(res.Attempts, attempt)

		if attempt.Err == nil {
			res.Success = true
			res.Strategy = strat.Name()

			s.applyPersonaState(log)

			log.Info("switch verified", zap.String("strategy", strat.Name()))
			notify.Publish(notify.Event{
				RunID:    res.RunID,
				Strategy: strat.Name(),
				Message:  "switched to " + target.AccountName,
				Success:  true,
				Terminal: true,
			})
			return res, nil
		}

		lastErr = attempt.Err
		log.Warn("strategy failed",
			zap.String("strategy", strat.Name()),
			zap.Error(attempt.Err))
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
	}

	notify.Publish(notify.Event{
		RunID:    res.RunID,
		Message:  "switch failed: " + target.AccountName,
		Terminal: true,
	})
	return res, fmt.Errorf("%w: last error: %v", ErrAllStrategiesFailed, lastErr)
}

// runStrategy executes one strategy and verifies its outcome.
func (s *Switcher) runStrategy(ctx context.Context, strat Strategy, runID string, log *zap.Logger) Attempt {
	start := time.Now()
	attempt := Attempt{Strategy: strat.Name(), State: window.Indeterminate}

	log.Info("attempting strategy", zap.String("strategy", strat.Name()))
	notify.Publish(notify.Event{RunID: runID, Strategy: strat.Name(), Message: "attempting " + strat.Name()})

	if err := strat.Execute(ctx); err != nil {
		attempt.Err = err
		attempt.Duration = time.Since(start)
		return attempt
	}

	attempt.State, attempt.Err = strat.Verify(ctx)
	attempt.Duration = time.Since(start)
	return attempt
}

// awaitSession polls the window state until a main session appears or
// the verify timeout lapses. The final observed state is returned
// alongside the error so callers can report what Steam was doing.
func (s *Switcher) awaitSession(ctx context.Context) (window.State, error) {
	deadline := time.Now().Add(s.cfg.Timeouts.Verify.Value())
	last := window.Indeterminate

	for {
		state, err := s.observe(ctx)
		if err != nil {
			return last, fmt.Errorf("observe window state: %w", err)
		}
		if state == window.AtMainSession {
			return state, nil
		}
		last = state

		if time.Now().After(deadline) {
			break
		}
		if err := sleepCtx(ctx, verifyPollInterval); err != nil {
			return last, err
		}
	}

	switch last {
	case window.AtLoginPrompt:
		return last, ErrLoginPrompt
	case window.Indeterminate:
		if s.proc.IsRunning() {
			return last, ErrVerificationIndeterminate
		}
		return last, ErrVerificationTimeout
	default:
		return last, ErrVerificationTimeout
	}
}

// applyPersonaState applies the configured post-switch persona state.
// Best effort; a verified switch is not failed over it.
func (s *Switcher) applyPersonaState(log *zap.Logger) {
	if s.cfg.PersonaState < 0 {
		return
	}
	if err := s.rewriteVDF(s.install.ConfigPath(), func(content []byte) ([]byte, error) {
		return vdf.SetPersonaState(content, s.cfg.PersonaState)
	}); err != nil {
		log.Warn("apply persona state", zap.Error(err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
