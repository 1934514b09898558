package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ksteinfeldt/switchdeck/internal/accounts"
	"github.com/ksteinfeldt/switchdeck/internal/style"
	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

var pickCmd = &cobra.Command{
	Use:     "pick",
	GroupID: GroupAccounts,
	Short:   "Choose an account interactively and switch to it",
	Long: `Open an interactive picker over the known accounts, then switch
to the chosen one. Typing filters the list.`,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
}

// accountItem adapts a discovered account to list.Item.
type accountItem struct {
	user vdf.User
}

func (i accountItem) Title() string {
	title := i.user.AccountName
	if i.user.MostRecent {
		title += " " + style.ActiveMarker
	}
	return title
}

func (i accountItem) Description() string {
	desc := i.user.PersonaName
	if desc == "" || desc == i.user.AccountName {
		desc = "last login " + i.user.Timestamp.Format("2006-01-02")
	}
	return desc
}

func (i accountItem) FilterValue() string {
	return i.user.AccountName + " " + i.user.PersonaName
}

type pickModel struct {
	list   list.Model
	choice *vdf.User
}

func newPickModel(users []vdf.User) pickModel {
	items := make([]list.Item, 0, len(users))
	for _, u := range users {
		items = append(items, accountItem{user: u})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Switch to which account?"
	l.SetShowStatusBar(false)
	return pickModel{list: l}
}

func (m pickModel) Init() tea.Cmd {
	return nil
}

func (m pickModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if sel, ok := m.list.SelectedItem().(accountItem); ok {
				m.choice = &sel.user
			}
			return m, tea.Quit
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m pickModel) View() string {
	return m.list.View()
}

func runPick(cmd *cobra.Command, args []string) error {
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
	if len(users) == 0 {
		fmt.Println("No accounts found.")
		return nil
	}

	prog := tea.NewProgram(newPickModel(users), tea.WithAltScreen())
	final, err := prog.Run()
	if err != nil {
		return err
	}

	m := final.(pickModel)
	if m.choice == nil {
		return nil
	}
	target := *m.choice

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
		return err
	}
	fmt.Printf("%s Switched to %s (%s)\n", style.SuccessPrefix,
		style.Account.Render(target.AccountName), res.Strategy)
	return nil
}
