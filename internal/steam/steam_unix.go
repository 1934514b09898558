//go:build !windows

package steam

import (
	"fmt"
	"os"
	"path/filepath"
)

const executableName = "steam"

var processFamily = Family{
	Main:      "steam",
	WebHelper: "steamwebhelper",
	Aux:       []string{"steamservice", "gameoverlayui"},
}

func discoverRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInstallNotFound, err)
	}

	candidates := []string{
		filepath.Join(home, ".steam", "steam"),
		filepath.Join(home, ".local", "share", "Steam"),
		filepath.Join(home, "Library", "Application Support", "Steam"),
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: checked %d known locations under %s", ErrInstallNotFound, len(candidates), home)
}
