package accounts

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(filepath.Join(t.TempDir(), "accounts.json"))
}

func TestRepository_LoadMissing(t *testing.T) {
	r := testRepo(t)
	_, err := r.Load()
	if !errors.Is(err, ErrRepositoryNotFound) {
		t.Fatalf("expected ErrRepositoryNotFound, got %v", err)
	}
}

func TestRepository_UpsertAndGet(t *testing.T) {
	r := testRepo(t)

	rec := Record{SteamID: "76561198000000001", AccountName: "alice", Notes: "main"}
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := r.Get("76561198000000001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountName != "alice" || got.Notes != "main" {
		t.Errorf("Get = %+v", got)
	}

	// Replace.
	rec.Notes = "smurf"
	if err := r.Upsert(rec); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	records, err := r.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if records[0].Notes != "smurf" {
		t.Errorf("Notes = %q, want %q", records[0].Notes, "smurf")
	}
}

func TestRepository_GetMissing(t *testing.T) {
	r := testRepo(t)
	if err := r.Upsert(Record{SteamID: "1", AccountName: "a"}); err != nil {
		t.Fatal(err)
	}
	_, err := r.Get("nope")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestRepository_Remove(t *testing.T) {
	r := testRepo(t)
	r.Upsert(Record{SteamID: "1", AccountName: "a"})
	r.Upsert(Record{SteamID: "2", AccountName: "b"})

	if err := r.Remove("1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := r.Get("1"); !errors.Is(err, ErrAccountNotFound) {
		t.Error("removed record should be gone")
	}
	if _, err := r.Get("2"); err != nil {
		t.Errorf("other record should remain: %v", err)
	}

	if err := r.Remove("1"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("removing again should report ErrAccountNotFound, got %v", err)
	}
}

func TestRepository_SyncDiscovered(t *testing.T) {
	r := testRepo(t)

	secret := []byte{0xde, 0xad}
	r.Upsert(Record{SteamID: "1", AccountName: "old-name", Notes: "keep me", Secret: secret})

	users := []vdf.User{
		{SteamID: "1", AccountName: "new-name", PersonaName: "New Persona", Timestamp: time.Unix(500, 0)},
		{SteamID: "2", AccountName: "fresh", PersonaName: "Fresh", Timestamp: time.Unix(400, 0)},
	}
	merged, err := r.SyncDiscovered(users)
	if err != nil {
		t.Fatalf("SyncDiscovered: %v", err)
	}
	if len(merged) != 2 {
		t.Fatalf("merged = %d, want 2", len(merged))
	}

	got, err := r.Get("1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccountName != "new-name" {
		t.Errorf("AccountName should refresh, got %q", got.AccountName)
	}
	if got.Notes != "keep me" {
		t.Errorf("Notes are user-owned and must survive sync, got %q", got.Notes)
	}
	if len(got.Secret) != 2 {
		t.Error("Secret is user-owned and must survive sync")
	}

	if _, err := r.Get("2"); err != nil {
		t.Errorf("new identity should be added: %v", err)
	}
}

func TestRepository_SyncDiscoveredCreatesFile(t *testing.T) {
	r := testRepo(t)
	_, err := r.SyncDiscovered([]vdf.User{{SteamID: "9", AccountName: "z"}})
	if err != nil {
		t.Fatalf("SyncDiscovered on empty repo: %v", err)
	}
	records, err := r.Load()
	if err != nil || len(records) != 1 {
		t.Fatalf("Load after sync: %v, %d records", err, len(records))
	}
}
