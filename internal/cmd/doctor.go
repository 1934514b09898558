package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ksteinfeldt/switchdeck/internal/doctor"
	"github.com/ksteinfeldt/switchdeck/internal/regstate"
	"github.com/ksteinfeldt/switchdeck/internal/style"
)

var doctorCmd = &cobra.Command{
	Use:     "doctor",
	GroupID: GroupSystem,
	Short:   "Diagnose the environment",
	Long: `Run diagnostics over everything a switch touches: the Steam
install, its config files, the auto-login store, and switchdeck's own
lock and config. A clean run means a switch has a fighting chance.`,
	RunE: runDoctor,
}

var doctorVerbose bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorVerbose, "details", false, "Show detail lines for every check")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	ctx := &doctor.CheckContext{
		Install:    a.install,
		InstallErr: a.installErr,
		ConfigPath: a.configPath(),
		LockPath:   a.lockPath(),
	}
	if a.install != nil {
		ctx.Store = regstate.NewStore(a.install.RegistryVDFPath())
	}

	results, healthy := doctor.RunAll(ctx, doctor.AllChecks())

	for _, res := range results {
		prefix := style.SuccessPrefix
		switch res.Status {
		case doctor.StatusWarning:
			prefix = style.WarningPrefix
		case doctor.StatusError:
			prefix = style.ErrorPrefix
		}
		fmt.Printf("%s %-16s %s\n", prefix, res.Name, res.Message)

		if doctorVerbose || res.Status == doctor.StatusError {
			for _, d := range res.Details {
				fmt.Printf("    %s\n", style.Dim.Render(d))
			}
			if res.FixHint != "" {
				fmt.Printf("    %s %s\n", style.ArrowPrefix, res.FixHint)
			}
		}
	}

	if !healthy {
		os.Exit(1)
	}
	return nil
}
