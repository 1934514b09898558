//go:build !windows

package regstate

import (
	"path/filepath"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.vdf")
	store := NewStore(path)

	// Missing file reads as zero state.
	st, err := store.Read()
	if err != nil {
		t.Fatalf("Read on missing file: %v", err)
	}
	if st.AutoLoginUser != "" || st.RememberPassword {
		t.Errorf("zero state expected, got %+v", st)
	}

	want := LoginState{AutoLoginUser: "alice", RememberPassword: true, LoginUser: "alice"}
	if err := store.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != want {
		t.Errorf("Read = %+v, want %+v", got, want)
	}
}

func TestFileStore_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.vdf")
	store := NewStore(path)

	if err := store.Write(LoginState{AutoLoginUser: "alice", RememberPassword: true}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if err := store.Write(LoginState{AutoLoginUser: "bob"}); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.AutoLoginUser != "bob" {
		t.Errorf("AutoLoginUser = %q, want %q", got.AutoLoginUser, "bob")
	}
	if got.RememberPassword {
		t.Error("RememberPassword should be cleared by the second write")
	}
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.vdf")
	store := NewStore(path)

	// Clearing a store that never existed is fine.
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear on missing file: %v", err)
	}

	if err := store.Write(LoginState{AutoLoginUser: "alice", RememberPassword: true}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	got, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.AutoLoginUser != "" || got.RememberPassword {
		t.Errorf("cleared state = %+v", got)
	}
}
