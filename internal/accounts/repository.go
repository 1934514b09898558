package accounts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

var (
	// ErrAccountNotFound indicates the requested account is not in the
	// repository.
	ErrAccountNotFound = errors.New("account not found")

	// ErrRepositoryNotFound indicates the repository file does not
	// exist yet.
	ErrRepositoryNotFound = errors.New("account repository not found")
)

// CurrentRepositoryVersion is the schema version of the repository file.
const CurrentRepositoryVersion = 1

// Record is switchdeck's own persisted view of one account. Discovery
// keeps SteamID/names/LastLogin fresh; Notes and Secret belong to the
// user.
type Record struct {
	// SteamID is the 64-bit account id as a decimal string.
	SteamID string `json:"steam_id"`

	// AccountName is the login name.
	AccountName string `json:"account_name"`

	// PersonaName is the display name.
	PersonaName string `json:"persona_name,omitempty"`

	// LastLogin is when Steam last saw this account.
	LastLogin time.Time `json:"last_login,omitempty"`

	// Notes is free-form user text.
	Notes string `json:"notes,omitempty"`

	// Secret is an encrypted credential blob, opaque at this layer.
	// The vault package seals and opens it.
	Secret []byte `json:"secret,omitempty"`
}

// repositoryFile is the on-disk shape.
type repositoryFile struct {
	Version  int      `json:"version"`
	Accounts []Record `json:"accounts"`
}

// Repository provides thread-safe persistence for account records.
type Repository struct {
	mu   sync.Mutex
	path string
}

// NewRepository creates a Repository storing records at path.
func NewRepository(path string) *Repository {
	return &Repository{path: path}
}

// Load reads all records from disk.
func (r *Repository) Load() ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	return f.Accounts, nil
}

func (r *Repository) loadLocked() (*repositoryFile, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, r.path)
		}
		return nil, fmt.Errorf("reading account repository: %w", err)
	}

	var f repositoryFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing account repository: %w", err)
	}
	return &f, nil
}

// Save writes all records to disk, replacing previous content.
func (r *Repository) Save(records []Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(&repositoryFile{Version: CurrentRepositoryVersion, Accounts: records})
}

func (r *Repository) saveLocked(f *repositoryFile) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding account repository: %w", err)
	}
	if err := os.WriteFile(r.path, data, 0600); err != nil {
		return fmt.Errorf("writing account repository: %w", err)
	}
	return nil
}

// Get returns the record with the given SteamID.
func (r *Repository) Get(steamID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	for i := range f.Accounts {
		if f.Accounts[i].SteamID == steamID {
			return &f.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, steamID)
}

// Upsert inserts or replaces the record keyed by SteamID.
func (r *Repository) Upsert(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		if !errors.Is(err, ErrRepositoryNotFound) {
			return err
		}
		f = &repositoryFile{Version: CurrentRepositoryVersion}
	}

	replaced := false
	for i := range f.Accounts {
		if f.Accounts[i].SteamID == rec.SteamID {
			f.Accounts[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		f.Accounts = append(f.Accounts, rec)
	}
	return r.saveLocked(f)
}

// Remove deletes the record with the given SteamID.
func (r *Repository) Remove(steamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		return err
	}
	for i := range f.Accounts {
		if f.Accounts[i].SteamID == steamID {
			f.Accounts = append(f.Accounts[:i], f.Accounts[i+1:]...)
			return r.saveLocked(f)
		}
	}
	return fmt.Errorf("%w: %s", ErrAccountNotFound, steamID)
}

// SyncDiscovered merges freshly discovered identities into the
// repository: new identities are added, known ones get their names and
// LastLogin refreshed. User-owned fields (Notes, Secret) are never
// touched. Returns the merged records.
func (r *Repository) SyncDiscovered(users []vdf.User) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := r.loadLocked()
	if err != nil {
		if !errors.Is(err, ErrRepositoryNotFound) {
			return nil, err
		}
		f = &repositoryFile{Version: CurrentRepositoryVersion}
	}

	byID := make(map[string]int, len(f.Accounts))
	for i, rec := range f.Accounts {
		byID[rec.SteamID] = i
	}

	for _, u := range users {
		if i, ok := byID[u.SteamID]; ok {
			f.Accounts[i].AccountName = u.AccountName
			f.Accounts[i].PersonaName = u.PersonaName
			f.Accounts[i].LastLogin = u.Timestamp
			continue
		}
		f.Accounts = append(f.Accounts, Record{
			SteamID:     u.SteamID,
			AccountName: u.AccountName,
			PersonaName: u.PersonaName,
			LastLogin:   u.Timestamp,
		})
	}

	if err := r.saveLocked(f); err != nil {
		return nil, err
	}
	return f.Accounts, nil
}
