package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ksteinfeldt/switchdeck/internal/accounts"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
	"github.com/ksteinfeldt/switchdeck/internal/style"
	"github.com/ksteinfeldt/switchdeck/internal/window"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupSystem,
	Short:   "Show what Steam is doing right now",
	Long: `Report Steam's current state: whether it is running, what its
windows look like (signed-in session or login prompt), which account
holds the most-recent slot, and what auto-login is set to.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	install, err := a.requireInstall()
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n", style.Bold.Render("Install:"), install.Root)

	ctrl, err := a.controller()
	if err != nil {
		return err
	}
	if !ctrl.IsRunning() {
		fmt.Printf("%s %s\n", style.Bold.Render("Client: "), "not running")
	} else {
		state := window.Indeterminate
		enum := window.NewEnumerator()
		if wins, err := enum.Visible(); err == nil {
			state = window.NewClassifier(steam.ProcessFamily(), nil).Classify(wins)
		}

		desc := map[window.State]string{
			window.Indeterminate: style.Dim.Render("running, state unknown"),
			window.AtLoginPrompt: style.Warning.Render("waiting at login prompt"),
			window.AtMainSession: style.Success.Render("signed in"),
		}[state]
		fmt.Printf("%s %s\n", style.Bold.Render("Client: "), desc)
	}

	if users, err := accounts.Discover(install.LoginUsersPath()); err == nil {
		for _, u := range users {
			if u.MostRecent {
				fmt.Printf("%s %s\n", style.Bold.Render("Account:"), style.Account.Render(u.AccountName))
			}
		}
	}

	if store, err := a.store(); err == nil {
		if state, err := store.Read(); err == nil && state.AutoLoginUser != "" {
			fmt.Printf("%s %s\n", style.Bold.Render("Autolog:"), state.AutoLoginUser)
		}
	}
	return nil
}
