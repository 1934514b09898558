package vdf

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrIDNotFound indicates the requested SteamID has no block in the
// users document. For the switcher this is the definitive signal that
// the identity has never logged in on this machine.
var ErrIDNotFound = errors.New("vdf: steam id not in users document")

// usersBlockKey is the root block of loginusers.vdf.
const usersBlockKey = "users"

// mostRecentKey is the auto-select marker field. Steam has written two
// spellings across client generations, "MostRecent" and "mostrecent";
// field lookup is case-insensitive, so a single query covers both, even
// when one block carries the two spellings as distinct fields.
const mostRecentKey = "MostRecent"

// User is one identity record as Steam stores it in loginusers.vdf.
type User struct {
	// SteamID is the 64-bit account id as a decimal string.
	SteamID string

	// AccountName is the login name.
	AccountName string

	// PersonaName is the display name. Falls back to AccountName when
	// the record does not carry one.
	PersonaName string

	// Timestamp is the last time Steam saw this account log in.
	Timestamp time.Time

	// MostRecent reports whether this record carries the auto-select
	// marker.
	MostRecent bool
}

// validSteamID reports whether s looks like a SteamID64: all digits,
// 8-17 of them. Shorter ids show up in ancient configs, anything else
// is a settings block, not an account.
func validSteamID(s string) bool {
	if len(s) < 8 || len(s) > 17 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseUsers extracts every identity record from a loginusers.vdf
// document. Records missing optional fields are tolerated: a record
// with no display name falls back to its login name, and a record with
// no parseable timestamp falls back to the current time. Unbalanced
// braces anywhere in the document produce a *SyntaxError.
func ParseUsers(content []byte) ([]User, error) {
	_, usersBlock, err := findBlock(content, usersBlockKey)
	if err != nil {
		return nil, err
	}

	entries, err := blockEntries(content, usersBlock)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var users []User
	for _, e := range entries {
		if e.Block.End == 0 || !validSteamID(e.Key) {
			continue
		}
		u := User{SteamID: e.Key, Timestamp: now}

		if f, ok := findField(content, e.Block, "AccountName"); ok {
			u.AccountName = f.Value
		}
		if f, ok := findField(content, e.Block, "PersonaName"); ok && f.Value != "" {
			u.PersonaName = f.Value
		} else {
			u.PersonaName = u.AccountName
		}
		if f, ok := findField(content, e.Block, "Timestamp"); ok {
			if secs, err := strconv.ParseInt(f.Value, 10, 64); err == nil {
				u.Timestamp = time.Unix(secs, 0)
			}
		}
		for _, f := range allFields(content, e.Block, mostRecentKey) {
			if f.Value == "1" {
				u.MostRecent = true
			}
		}

		users = append(users, u)
	}
	return users, nil
}

// SetMostRecent rewrites content so that exactly the record with the
// given SteamID carries the most-recent marker: every marker field in
// every record (both historical spellings) is cleared to "0", then the
// target's is set to "1". A target record that has no marker field gets
// one appended. All bytes outside the touched values are preserved
// verbatim.
//
// Returns ErrIDNotFound, without producing output, when steamID has no
// block in the document. Applying the same rewrite twice yields
// byte-identical output on the second call.
func SetMostRecent(content []byte, steamID string) ([]byte, error) {
	_, usersBlock, err := findBlock(content, usersBlockKey)
	if err != nil {
		return nil, err
	}

	entries, err := blockEntries(content, usersBlock)
	if err != nil {
		return nil, err
	}

	var (
		edits       []edit
		target      *entry
		targetMarks int
	)
	for i, e := range entries {
		if e.Block.End == 0 || !validSteamID(e.Key) {
			continue
		}
		isTarget := e.Key == steamID
		if isTarget {
			target = &entries[i]
		}
		for _, f := range allFields(content, e.Block, mostRecentKey) {
			want := "0"
			if isTarget {
				want = "1"
				targetMarks++
			}
			if f.Value != want {
				edits = append(edits, edit{span: f.ValueSpan, repl: quoted(want)})
			}
		}
	}

	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrIDNotFound, steamID)
	}
	if targetMarks == 0 {
		// Record predates the marker field; append one inside the block,
		// just before its closing brace, matching Steam's indentation.
		insertAt := target.Block.End - 1
		line := []byte("\t\"MostRecent\"\t\t\"1\"\n\t")
		edits = append(edits, edit{span: span{Start: insertAt, End: insertAt}, repl: line})
	}

	return applyEdits(content, edits)
}

// SetPersonaState rewrites a config.vdf document so the PersonaState
// field holds the given value (0=offline through 6=looking-to-play).
// The field is replaced in place when present; otherwise it is appended
// to the innermost end of the document's root block. Only the value
// bytes change.
func SetPersonaState(content []byte, state int) ([]byte, error) {
	if state < 0 || state > 6 {
		return nil, fmt.Errorf("vdf: persona state %d out of range 0..6", state)
	}

	whole := span{Start: 0, End: len(content)}
	if f, ok := findField(content, whole, "PersonaState"); ok {
		if f.Value == strconv.Itoa(state) {
			out := make([]byte, len(content))
			copy(out, content)
			return out, nil
		}
		return applyEdits(content, []edit{{span: f.ValueSpan, repl: quoted(strconv.Itoa(state))}})
	}

	// No field anywhere: append inside the root block.
	s := newScanner(content)
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		if tok.Kind == tokenEOF {
			return nil, fmt.Errorf("%w: no root block for PersonaState", ErrBlockNotFound)
		}
		if tok.Kind != tokenOpen {
			continue
		}
		block, err := matchBlock(s, tok)
		if err != nil {
			return nil, err
		}
		insertAt := block.End - 1
		line := []byte(fmt.Sprintf("\t\"PersonaState\"\t\t\"%d\"\n", state))
		return applyEdits(content, []edit{{span: span{Start: insertAt, End: insertAt}, repl: line}})
	}
}
