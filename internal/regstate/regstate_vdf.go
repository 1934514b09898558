//go:build !windows

package regstate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ksteinfeldt/switchdeck/internal/vdf"
)

// registrySkeleton is the minimal document Steam itself writes on a
// fresh install; used when registry.vdf does not exist yet.
const registrySkeleton = `"Registry"
{
	"HKCU"
	{
		"Software"
		{
			"Valve"
			{
				"Steam"
				{
				}
			}
		}
	}
}
`

// fileStore keeps the login state in Steam's registry.vdf, the
// non-Windows equivalent of the Valve registry key.
type fileStore struct {
	path string
}

// NewStore returns a store backed by the registry.vdf at path.
func NewStore(path string) Store {
	return &fileStore{path: path}
}

func (s *fileStore) load() ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []byte(registrySkeleton), nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return nil, fmt.Errorf("%w: %s", ErrAccessDenied, s.path)
		}
		return nil, err
	}
	return data, nil
}

func (s *fileStore) save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("%w: %s", ErrAccessDenied, s.path)
		}
		return err
	}
	return nil
}

func (s *fileStore) Read() (LoginState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return LoginState{}, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return LoginState{}, fmt.Errorf("%w: %s", ErrAccessDenied, s.path)
		}
		return LoginState{}, err
	}

	var st LoginState
	if v, err := vdf.GetField(data, "Steam", "AutoLoginUser"); err == nil {
		st.AutoLoginUser = v
	}
	if v, err := vdf.GetField(data, "Steam", "RememberPassword"); err == nil {
		st.RememberPassword = v == "1"
	}
	if v, err := vdf.GetField(data, "Steam", "LoginUser"); err == nil {
		st.LoginUser = v
	}
	return st, nil
}

func (s *fileStore) Write(st LoginState) error {
	data, err := s.load()
	if err != nil {
		return err
	}

	remember := "0"
	if st.RememberPassword {
		remember = "1"
	}
	fields := [][2]string{
		{"AutoLoginUser", st.AutoLoginUser},
		{"RememberPassword", remember},
	}
	if st.LoginUser != "" {
		fields = append(fields, [2]string{"LoginUser", st.LoginUser})
	}
	for _, f := range fields {
		data, err = vdf.SetField(data, "Steam", f[0], f[1])
		if err != nil {
			return fmt.Errorf("updating %s: %w", f[0], err)
		}
	}

	return s.save(data)
}

func (s *fileStore) Clear() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, f := range [][2]string{{"AutoLoginUser", ""}, {"RememberPassword", "0"}} {
		data, err = vdf.SetField(data, "Steam", f[0], f[1])
		if err != nil {
			return fmt.Errorf("clearing %s: %w", f[0], err)
		}
	}
	return s.save(data)
}
