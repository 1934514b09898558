// Package accounts discovers the identities the local Steam client
// knows about and keeps switchdeck's own persisted account records.
package accounts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"golang.org/x/text/cases"

	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

// ErrConfigNotFound indicates the client's login document is missing,
// i.e. Steam has never run (or never logged anyone in) on this machine.
var ErrConfigNotFound = errors.New("login document not found")

// fold is the Unicode case folder used for name comparison. Steam
// treats account names case-insensitively, and persona names come from
// users in arbitrary scripts, so ASCII lowering is not enough.
var fold = cases.Fold()

// Discover reads the login document at path and returns the client's
// known identities, deduplicated and sorted most recent first.
func Discover(path string) ([]vdf.User, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading login document: %w", err)
	}

	users, err := vdf.ParseUsers(data)
	if err != nil {
		return nil, err
	}
	return Dedupe(users), nil
}

// Dedupe collapses duplicate identities: exact SteamID match first,
// then case-folded login name, then case-folded display name. When two
// records collide the one with the greater timestamp survives,
// regardless of document order. The result is sorted most recent
// first.
func Dedupe(users []vdf.User) []vdf.User {
	sorted := make([]vdf.User, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	seenID := make(map[string]bool)
	seenAccount := make(map[string]bool)
	seenPersona := make(map[string]bool)

	out := sorted[:0]
	for _, u := range sorted {
		account := fold.String(u.AccountName)
		persona := fold.String(u.PersonaName)

		switch {
		case seenID[u.SteamID]:
			continue
		case account != "" && seenAccount[account]:
			continue
		case persona != "" && seenPersona[persona]:
			continue
		}

		seenID[u.SteamID] = true
		if account != "" {
			seenAccount[account] = true
		}
		if persona != "" {
			seenPersona[persona] = true
		}
		out = append(out, u)
	}
	return out
}

// FindByName returns the discovered identity whose login name matches,
// case-folded, or false when absent.
func FindByName(users []vdf.User, accountName string) (vdf.User, bool) {
	want := fold.String(accountName)
	for _, u := range users {
		if fold.String(u.AccountName) == want {
			return u, true
		}
	}
	return vdf.User{}, false
}
