//go:build windows

package steam

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows/registry"
)

const executableName = "steam.exe"

var processFamily = Family{
	Main:      "steam.exe",
	WebHelper: "steamwebhelper.exe",
	Aux:       []string{"steamservice.exe", "gameoverlayui.exe"},
}

// registry keys that record the install path, per-user first, then the
// machine-wide 32-bit-compat mirror.
var installPathKeys = []struct {
	root registry.Key
	path string
}{
	{registry.CURRENT_USER, `Software\Valve\Steam`},
	{registry.LOCAL_MACHINE, `SOFTWARE\WOW6432Node\Valve\Steam`},
	{registry.LOCAL_MACHINE, `SOFTWARE\Valve\Steam`},
}

func discoverRoot() (string, error) {
	for _, k := range installPathKeys {
		key, err := registry.OpenKey(k.root, k.path, registry.QUERY_VALUE)
		if err != nil {
			continue
		}
		val, _, err := key.GetStringValue("InstallPath")
		if err != nil {
			val, _, err = key.GetStringValue("SteamPath")
		}
		key.Close()
		if err != nil || val == "" {
			continue
		}
		root := filepath.Clean(val)
		if _, err := os.Stat(root); err == nil {
			return root, nil
		}
	}

	// Fallback to the stock location.
	stock := filepath.Join(os.Getenv("ProgramFiles(x86)"), "Steam")
	if _, err := os.Stat(stock); err == nil {
		return stock, nil
	}

	return "", fmt.Errorf("%w: no registry entry and no stock path", ErrInstallNotFound)
}
