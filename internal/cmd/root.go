// Package cmd implements the switchdeck command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ksteinfeldt/switchdeck/internal/config"
	"github.com/ksteinfeldt/switchdeck/internal/logging"
	"github.com/ksteinfeldt/switchdeck/internal/notify"
	"github.com/ksteinfeldt/switchdeck/internal/process"
	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
	"github.com/ksteinfeldt/switchdeck/internal/switcher"
	"github.com/ksteinfeldt/switchdeck/internal/window"
)

// Command groups for help output.
const (
	GroupAccounts = "accounts"
	GroupSystem   = "system"
)

var (
	flagVerbose bool
	flagConfig  string
)

var rootCmd = &cobra.Command{
	Use:   "switchdeck",
	Short: "Switch between Steam accounts without retyping passwords",
	Long: `Switchdeck switches the local Steam client between accounts.

It shuts Steam down cleanly, primes the client to sign in as the target
account, relaunches, and then watches Steam's actual windows to confirm
the switch took. Several strategies are tried in order, so a switch
succeeds whenever any of them works on this machine.

Examples:
  switchdeck list                 # Show known accounts
  switchdeck switch alice         # Switch to alice
  switchdeck pick                 # Choose interactively
  switchdeck status               # What is Steam doing right now
  switchdeck doctor               # Diagnose the environment`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupAccounts, Title: "Account Commands:"},
		&cobra.Group{ID: GroupSystem, Title: "System Commands:"},
	)
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: user config dir)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles the wired collaborators commands work with.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	install *steam.Install

	// installErr is kept for doctor; most commands need the install
	// and fail fast without it.
	installErr error

	dataDir string
}

// newApp loads config and discovers Steam. Discovery failure is
// recorded, not fatal, so doctor can still run.
func newApp() (*app, error) {
	cfgPath := flagConfig
	if cfgPath == "" {
		var err error
		cfgPath, err = config.Path()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(flagVerbose)

	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	dataDir := filepath.Join(base, "switchdeck")

	install, installErr := steam.Find(cfg.SteamRoot)

	a := &app{
		cfg:        cfg,
		log:        log,
		install:    install,
		installErr: installErr,
		dataDir:    dataDir,
	}

	if cfg.Notify.Enabled && cfg.Notify.WebhookURL != "" {
		hook := notify.NewWebhookClient(cfg.Notify.WebhookURL, log)
		filter := notify.WebhookFilter{
			OnAttempt: cfg.Notify.OnAttempt,
			OnResult:  cfg.Notify.OnResult,
		}
		notify.SetGlobal(notify.NewBroadcaster(hook, filter))
	}

	return a, nil
}

func (a *app) configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	p, _ := config.Path()
	return p
}

func (a *app) lockPath() string {
	return filepath.Join(a.dataDir, "switch.lock")
}

func (a *app) repositoryPath() string {
	return filepath.Join(a.dataDir, "accounts.json")
}

func (a *app) metadataCachePath() string {
	return filepath.Join(a.dataDir, "metadata.json")
}

func (a *app) vaultSecretPath() string {
	return filepath.Join(a.dataDir, "vault.key")
}

// requireInstall returns the Steam install or a user-facing error.
func (a *app) requireInstall() (*steam.Install, error) {
	if a.install == nil {
		return nil, fmt.Errorf("Steam install not found: %w (set steam_root in %s)", a.installErr, a.configPath())
	}
	return a.install, nil
}

// controller builds a process controller for the install.
func (a *app) controller() (*process.SteamController, error) {
	install, err := a.requireInstall()
	if err != nil {
		return nil, err
	}
	exe, err := install.Executable()
	if err != nil {
		return nil, err
	}
	return process.NewController(exe, steam.ProcessFamily(), a.log), nil
}

// store builds the login preference store for the install.
func (a *app) store() (regstate.Store, error) {
	install, err := a.requireInstall()
	if err != nil {
		return nil, err
	}
	return regstate.NewStore(install.RegistryVDFPath()), nil
}

// observe builds the window-state probe used for verification.
func (a *app) observe() func(context.Context) (window.State, error) {
	enum := window.NewEnumerator()
	cls := window.NewClassifier(steam.ProcessFamily(), nil)
	return func(ctx context.Context) (window.State, error) {
		if err := ctx.Err(); err != nil {
			return window.Indeterminate, err
		}
		wins, err := enum.Visible()
		if err != nil {
			return window.Indeterminate, err
		}
		return cls.Classify(wins), nil
	}
}

// switcher wires the full switch pipeline.
func (a *app) switcher() (*switcher.Switcher, error) {
	install, err := a.requireInstall()
	if err != nil {
		return nil, err
	}
	ctrl, err := a.controller()
	if err != nil {
		return nil, err
	}
	store, err := a.store()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.dataDir, 0755); err != nil {
		return nil, err
	}
	return switcher.New(install, ctrl, store, a.observe(), a.cfg, a.lockPath(), a.log), nil
}
