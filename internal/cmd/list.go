package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ksteinfeldt/switchdeck/internal/accounts"
	"github.com/ksteinfeldt/switchdeck/internal/metadata"
	"github.com/ksteinfeldt/switchdeck/internal/style"
)

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: GroupAccounts,
	Short:   "Show accounts known to this machine",
	Long: `List the Steam accounts that have signed in on this machine.

Accounts come from Steam's own loginusers.vdf, merged with the local
account repository. The account currently holding the most-recent slot
is marked.

Examples:
  switchdeck list               # Plain listing
  switchdeck list --details     # Include ban status and game counts
  switchdeck list --json        # Machine-readable output`,
	RunE: runList,
}

var (
	listJSON    bool
	listDetails bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().BoolVar(&listDetails, "details", false, "Fetch profile metadata (needs steam_api_key)")
}

// listEntry is one row of list output.
type listEntry struct {
	SteamID     string            `json:"steam_id"`
	AccountName string            `json:"account_name"`
	PersonaName string            `json:"persona_name"`
	LastLogin   time.Time         `json:"last_login"`
	MostRecent  bool              `json:"most_recent"`
	Notes       string            `json:"notes,omitempty"`
	Metadata    *metadata.Summary `json:"metadata,omitempty"`
}

func runList(cmd *cobra.Command, args []string) error {
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
		if errors.Is(err, accounts.ErrConfigNotFound) {
			fmt.Println("No accounts found. Sign in to Steam once so it records the account.")
			return nil
		}
		return err
	}

	repo := accounts.NewRepository(a.repositoryPath())
	if _, err := repo.SyncDiscovered(users); err != nil {
		a.log.Warn("sync account repository", zap.Error(err))
	}

	entries := make([]listEntry, 0, len(users))
	for _, u := range users {
		e := listEntry{
			SteamID:     u.SteamID,
			AccountName: u.AccountName,
			PersonaName: u.PersonaName,
			LastLogin:   u.Timestamp,
			MostRecent:  u.MostRecent,
		}
		if rec, err := repo.Get(u.SteamID); err == nil {
			e.Notes = rec.Notes
		}
		entries = append(entries, e)
	}

	if listDetails {
		client := metadata.NewClient(a.cfg.SteamAPIKey, a.metadataCachePath())
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		for i := range entries {
			summary, err := client.Get(ctx, entries[i].SteamID)
			if err != nil {
				if errors.Is(err, metadata.ErrNoAPIKey) {
					return fmt.Errorf("--details needs steam_api_key in %s", a.configPath())
				}
				a.log.Warn("fetch metadata", zap.Error(err))
				continue
			}
			entries[i].Metadata = &summary
		}
	}

	if listJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Println("No accounts found.")
		return nil
	}

	for _, e := range entries {
		marker := "  "
		if e.MostRecent {
			marker = style.ActiveMarker + " "
		}

		name := style.Account.Render(e.AccountName)
		line := fmt.Sprintf("%s%s", marker, name)
		if e.PersonaName != "" && e.PersonaName != e.AccountName {
			line += fmt.Sprintf(" (%s)", e.PersonaName)
		}
		line += style.Dim.Render(fmt.Sprintf("  last login %s", e.LastLogin.Format("2006-01-02")))
		fmt.Println(line)

		if e.Notes != "" {
			fmt.Printf("    %s\n", style.Dim.Render(e.Notes))
		}
		if m := e.Metadata; m != nil {
			detail := fmt.Sprintf("    %d games", m.GameCount)
			if m.VACBanned {
				detail += "  " + style.Error.Render("VAC banned")
			}
			if m.CommunityBan {
				detail += "  " + style.Warning.Render("community ban")
			}
			fmt.Println(detail)
		}
	}
	return nil
}
