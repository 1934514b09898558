package window

import (
	"testing"

	"github.com/ksteinfeldt/switchdeck/internal/steam"
)

func testFamily() steam.Family {
	return steam.Family{
		Main:      "steam",
		WebHelper: "steamwebhelper",
		Aux:       []string{"steamservice", "gameoverlayui"},
	}
}

// procTable builds a resolve function from a fixed pid table.
func procTable(m map[int]string) func(int) string {
	return func(pid int) string { return m[pid] }
}

func TestClassify(t *testing.T) {
	family := testFamily()
	procs := procTable(map[int]string{
		10: "steam",
		11: "steamwebhelper",
		12: "gameoverlayui",
		99: "firefox",
	})
	c := NewClassifier(family, procs)

	tests := []struct {
		name    string
		windows []Window
		want    State
	}{
		{
			name: "sign-in window owned by web helper",
			windows: []Window{
				{Title: "Sign in to Steam", PID: 11},
			},
			want: AtLoginPrompt,
		},
		{
			name: "main window owned by main process",
			windows: []Window{
				{Title: "Steam", PID: 10},
			},
			want: AtMainSession,
		},
		{
			name:    "no client windows at all",
			windows: []Window{{Title: "Sign in to Steam", PID: 99}},
			want:    Indeterminate,
		},
		{
			name:    "empty snapshot",
			windows: nil,
			want:    Indeterminate,
		},
		{
			name: "prompt wins over lingering session window",
			windows: []Window{
				{Title: "Steam", PID: 10},
				{Title: "Sign in", PID: 11},
			},
			want: AtLoginPrompt,
		},
		{
			name: "empty title on a UI host is prompt evidence",
			windows: []Window{
				{Title: "", PID: 11},
			},
			want: AtLoginPrompt,
		},
		{
			name: "prompt title on a non-UI-host helper is ignored",
			windows: []Window{
				{Title: "Sign in", PID: 12},
			},
			want: Indeterminate,
		},
		{
			name: "main window recognized by class",
			windows: []Window{
				{Title: "Friends List", Class: "vguiPopupWindow", PID: 10},
			},
			want: AtMainSession,
		},
		{
			name: "unrelated windows only",
			windows: []Window{
				{Title: "Mozilla Firefox", PID: 99},
			},
			want: Indeterminate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify(tt.windows); got != tt.want {
				t.Errorf("Classify = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	if AtLoginPrompt.String() != "login-prompt" {
		t.Errorf("AtLoginPrompt.String() = %q", AtLoginPrompt.String())
	}
	if AtMainSession.String() != "main-session" {
		t.Errorf("AtMainSession.String() = %q", AtMainSession.String())
	}
	if Indeterminate.String() != "indeterminate" {
		t.Errorf("Indeterminate.String() = %q", Indeterminate.String())
	}
}
