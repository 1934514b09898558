// Package window inspects top-level OS windows from outside the Steam
// process to decide whether the client is sitting at a credential
// prompt or inside an authenticated session. Query-only; nothing here
// mutates window state.
package window

import (
	"strings"

	"github.com/ksteinfeldt/switchdeck/internal/process"
	"github.com/ksteinfeldt/switchdeck/internal/steam"
)

// Window is one visible top-level window. Handle is opaque and never
// leaves this package's platform code in a form callers could misuse.
type Window struct {
	Handle uintptr
	Title  string
	Class  string
	PID    int
}

// Enumerator produces snapshots of visible top-level windows. Each call
// to Visible performs one fresh enumeration pass; the returned slice is
// a point-in-time view, never updated in place.
type Enumerator interface {
	Visible() ([]Window, error)
}

// NewEnumerator returns the platform enumerator. On platforms without
// native window enumeration it yields empty snapshots, which classify
// as Indeterminate.
func NewEnumerator() Enumerator {
	return platformEnumerator{}
}

// State is the classified UI state of the client.
type State int

const (
	// Indeterminate means no client window gave evidence either way.
	// Callers must treat this as "not verified", never as success.
	Indeterminate State = iota

	// AtLoginPrompt means a credential prompt is showing.
	AtLoginPrompt

	// AtMainSession means a fully authenticated main window is showing.
	AtMainSession
)

func (s State) String() string {
	switch s {
	case AtLoginPrompt:
		return "login-prompt"
	case AtMainSession:
		return "main-session"
	default:
		return "indeterminate"
	}
}

// Title and class patterns observed across client generations. The
// prompt has shipped under several near-identical titles; the main
// window has always been titled exactly "Steam".
var (
	promptTitles = []string{
		"sign in to steam",
		"steam sign in",
		"sign in",
		"steam login",
	}
	promptClasses = []string{
		"login",
	}
	mainTitles = []string{
		"steam",
	}
	mainClasses = []string{
		"sdl_app",
		"vguipopupwindow",
	}
)

// Classifier decides client UI state from a window snapshot.
type Classifier struct {
	family  steam.Family
	resolve func(pid int) string
}

// NewClassifier builds a classifier for the given process family.
// resolve maps a pid to its bare executable name; nil uses the real
// process table.
func NewClassifier(family steam.Family, resolve func(pid int) string) *Classifier {
	if resolve == nil {
		resolve = process.ExecutableName
	}
	return &Classifier{family: family, resolve: resolve}
}

// isPromptWindow reports prompt evidence from title/class alone: an
// exact known prompt title, a prompt-ish class, or a short/empty title
// (the prompt briefly shows with no title while the web helper loads).
func isPromptWindow(w Window) bool {
	title := strings.ToLower(strings.TrimSpace(w.Title))
	if len(title) <= 3 {
		return true
	}
	for _, p := range promptTitles {
		if title == p || strings.HasPrefix(title, p) {
			return true
		}
	}
	class := strings.ToLower(w.Class)
	for _, p := range promptClasses {
		if strings.Contains(class, p) {
			return true
		}
	}
	return false
}

// isMainWindow reports main-session evidence from title/class alone.
func isMainWindow(w Window) bool {
	title := strings.ToLower(strings.TrimSpace(w.Title))
	for _, m := range mainTitles {
		if title == m {
			return true
		}
	}
	class := strings.ToLower(w.Class)
	for _, m := range mainClasses {
		if class == m {
			return true
		}
	}
	return false
}

// Classify inspects a snapshot and resolves the client's UI state.
//
// A window only counts as prompt evidence when its owning process is a
// UI host of the family (main client or web helper; modern clients
// render the login screen inside the helper). Prompt evidence wins over
// main evidence: a session window lingering behind a re-lock prompt is
// still a prompt. With no prompt evidence, main evidence resolves to
// AtMainSession; with neither, Indeterminate.
func (c *Classifier) Classify(windows []Window) State {
	var promptSeen, mainSeen bool
	for _, w := range windows {
		name := c.resolve(w.PID)
		if name == "" || !c.family.Contains(name) {
			continue
		}
		if c.family.IsUIHost(name) && isPromptWindow(w) {
			promptSeen = true
			continue
		}
		if isMainWindow(w) {
			mainSeen = true
		}
	}

	switch {
	case promptSeen:
		return AtLoginPrompt
	case mainSeen:
		return AtMainSession
	default:
		return Indeterminate
	}
}
