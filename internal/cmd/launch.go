package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ksteinfeldt/switchdeck/internal/steam"
	"github.com/ksteinfeldt/switchdeck/internal/style"
)

var launchCmd = &cobra.Command{
	Use:     "launch",
	GroupID: GroupSystem,
	Short:   "Launch Steam, optionally straight into a game",
	Long: `Launch the Steam client under the currently configured account.

With --app, Steam launches and then starts that game.

Examples:
  switchdeck launch
  switchdeck launch --app 730     # Launch straight into CS2`,
	RunE: runLaunch,
}

var launchApp string

func init() {
	rootCmd.AddCommand(launchCmd)
	launchCmd.Flags().StringVar(&launchApp, "app", "", "App ID to launch after sign-in")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctrl, err := a.controller()
	if err != nil {
		return err
	}

	if ctrl.IsRunning() {
		fmt.Printf("%s Steam is already running.\n", style.WarningPrefix)
		return nil
	}

	var launchArgs []string
	if launchApp != "" {
		launchArgs = steam.AppLaunchArgs(launchApp)
	}
	if _, err := ctrl.Launch(launchArgs...); err != nil {
		return fmt.Errorf("launch Steam: %w", err)
	}

	msg := "Steam launching"
	if launchApp != "" {
		msg += " with app " + launchApp
	}
	fmt.Printf("%s %s\n", style.SuccessPrefix, msg)
	return nil
}
