package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ksteinfeldt/switchdeck/internal/accounts"
	"github.com/ksteinfeldt/switchdeck/internal/style"
	"github.com/ksteinfeldt/switchdeck/internal/switcher"
	"github.com/ksteinfeldt/switchdeck/internal/vault"
	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

var switchCmd = &cobra.Command{
	Use:     "switch <account>",
	GroupID: GroupAccounts,
	Short:   "Switch Steam to another account",
	Long: `Switch the Steam client to the given account.

Steam is shut down, primed for the target account, relaunched, and the
result is verified against the windows Steam actually shows. Strategies
are tried in configured order until one verifies.

The account may be given by account name or persona name; matching is
case-insensitive.

Examples:
  switchdeck switch alice
  switchdeck switch alice --persona 1        # Go online after switching
  switchdeck switch alice --strategy registry-autologin
  switchdeck switch alice --store-secret     # Save the password locally`,
	Args: cobra.ExactArgs(1),
	RunE: runSwitch,
}

var (
	switchPersona     int
	switchStrategies  []string
	switchStoreSecret bool
)

func init() {
	rootCmd.AddCommand(switchCmd)
	switchCmd.Flags().IntVar(&switchPersona, "persona", -2, "Persona state after switching (0-6)")
	switchCmd.Flags().StringSliceVar(&switchStrategies, "strategy", nil,
		fmt.Sprintf("Override strategy order (choices: %s)", strings.Join(switcher.StrategyNames(), ", ")))
	switchCmd.Flags().BoolVar(&switchStoreSecret, "store-secret", false, "Prompt for the account password and store it encrypted")
}

// resolveTarget finds the requested account among the discovered ones.
// Login names are matched first, persona names as a fallback.
func resolveTarget(users []vdf.User, query string) (vdf.User, error) {
	if u, ok := accounts.FindByName(users, query); ok {
		return u, nil
	}
	for _, u := range users {
		if strings.EqualFold(u.PersonaName, query) {
			return u, nil
		}
	}
	known := make([]string, 0, len(users))
	for _, u := range users {
		known = append(known, u.AccountName)
	}
	return vdf.User{}, fmt.Errorf("no account %q on this machine (known: %v)", query, known)
}

func runSwitch(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	install, err := a.requireInstall()
	if err != nil {
		return err
	}

	users, err := accounts.Discover(install.LoginUsersPath())
	if err != nil {
		return err
	}
	target, err := resolveTarget(users, args[0])
	if err != nil {
		return err
	}

	if switchPersona >= -1 {
		a.cfg.PersonaState = switchPersona
	}
	if len(switchStrategies) > 0 {
		a.cfg.Strategies = switchStrategies
	}

	if switchStoreSecret {
		if err := storeSecret(a, target); err != nil {
			return err
		}
	}

	sw, err := a.switcher()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("%s Switching to %s...\n", style.ArrowPrefix, style.Account.Render(target.AccountName))

	res, err := sw.SwitchTo(ctx, target)
	if res != nil && res.Busy {
		fmt.Printf("%s Another switch is already in progress.\n", style.WarningPrefix)
		return nil
	}
	if err != nil {
		printAttempts(res)
		if errors.Is(err, switcher.ErrAllStrategiesFailed) {
			return fmt.Errorf("switch did not verify: %w", err)
		}
		return err
	}

	fmt.Printf("%s Switched to %s (%s)\n", style.SuccessPrefix,
		style.Account.Render(target.AccountName), res.Strategy)
	return nil
}

// printAttempts shows per-strategy diagnostics after a failed switch.
func printAttempts(res *switcher.Result) {
	if res == nil {
		return
	}
	for _, at := range res.Attempts {
		msg := "ok"
		if at.Err != nil {
			msg = at.Err.Error()
		}
		fmt.Printf("  %s %-20s %s %s\n", style.ErrorPrefix, at.Strategy,
			style.Dim.Render(at.Duration.Round(10*time.Millisecond).String()), msg)
	}
}

// storeSecret prompts for the account password and saves it sealed in
// the local repository. Nothing ever sends it anywhere; it exists so
// the password manager is this tool instead of a sticky note.
func storeSecret(a *app, target vdf.User) error {
	fmt.Printf("Password for %s (stored encrypted, locally): ", target.AccountName)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	if len(secret) == 0 {
		return errors.New("empty password not stored")
	}

	v := vault.New(a.vaultSecretPath())
	blob, err := v.Seal(secret)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}

	repo := accounts.NewRepository(a.repositoryPath())
	rec, err := repo.Get(target.SteamID)
	if err != nil {
		rec = &accounts.Record{
			SteamID:     target.SteamID,
			AccountName: target.AccountName,
			PersonaName: target.PersonaName,
		}
	}
	rec.Secret = blob
	if err := repo.Upsert(*rec); err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	fmt.Printf("%s Password stored.\n", style.SuccessPrefix)
	return nil
}
