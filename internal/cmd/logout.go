package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/style"
	"github.com/ksteinfeldt/switchdeck/internal/switcher"
)

var logoutCmd = &cobra.Command{
	Use:     "logout",
	GroupID: GroupAccounts,
	Short:   "Sign out and bring Steam up at the login prompt",
	Long: `Sign the current account out.

Steam is shut down and the stored auto-login keys are removed, so the
next launch stops at the login prompt instead of signing someone in.
Steam is relaunched unless --no-relaunch is given.

Examples:
  switchdeck logout
  switchdeck logout --no-relaunch`,
	RunE: runLogout,
}

var logoutNoRelaunch bool

func init() {
	rootCmd.AddCommand(logoutCmd)
	logoutCmd.Flags().BoolVar(&logoutNoRelaunch, "no-relaunch", false, "Leave Steam stopped after clearing the login")
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctrl, err := a.controller()
	if err != nil {
		return err
	}
	store, err := a.store()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return logout(ctx, ctrl, store, a.cfg.Timeouts.Terminate.Value(), !logoutNoRelaunch)
}

// logout stops Steam, removes the stored auto-login keys, and
// optionally relaunches so Steam comes up at the login prompt. A dirty
// shutdown still clears the login; the keys are what sign accounts in.
func logout(ctx context.Context, ctrl switcher.Controller, store regstate.Store, terminate time.Duration, relaunch bool) error {
	if ok, err := ctrl.TerminateAll(ctx, terminate); err != nil || !ok {
		fmt.Printf("%s Steam did not shut down cleanly; clearing the login anyway.\n", style.WarningPrefix)
	}

	if err := store.Clear(); err != nil {
		return fmt.Errorf("clear auto-login: %w", err)
	}
	fmt.Printf("%s Auto-login cleared.\n", style.SuccessPrefix)

	if !relaunch {
		return nil
	}
	if _, err := ctrl.Launch(); err != nil {
		return fmt.Errorf("relaunch Steam: %w", err)
	}
	fmt.Printf("%s Steam launching at the login prompt.\n", style.ArrowPrefix)
	return nil
}
