//go:build windows

package regstate

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	userKeyPath   = `Software\Valve\Steam`
	mirrorKeyPath = `SOFTWARE\WOW6432Node\Valve\Steam`
)

// registryStore reads HKCU and best-effort mirrors writes into the
// machine-wide 32-bit-compat subtree, matching what the client itself
// maintains.
type registryStore struct{}

// NewStore returns the Windows registry-backed store.
func NewStore(_ string) Store {
	return registryStore{}
}

func mapErr(err error) error {
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		return fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	return err
}

func (registryStore) Read() (LoginState, error) {
	key, err := registry.OpenKey(registry.CURRENT_USER, userKeyPath, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return LoginState{}, nil
		}
		return LoginState{}, mapErr(err)
	}
	defer key.Close()

	var st LoginState
	if v, _, err := key.GetStringValue("AutoLoginUser"); err == nil {
		st.AutoLoginUser = v
	}
	if v, _, err := key.GetIntegerValue("RememberPassword"); err == nil {
		st.RememberPassword = v == 1
	}
	if v, _, err := key.GetStringValue("LoginUser"); err == nil {
		st.LoginUser = v
	}
	return st, nil
}

func (registryStore) Write(st LoginState) error {
	key, _, err := registry.CreateKey(registry.CURRENT_USER, userKeyPath, registry.SET_VALUE)
	if err != nil {
		return mapErr(err)
	}
	defer key.Close()

	if err := key.SetStringValue("AutoLoginUser", st.AutoLoginUser); err != nil {
		return mapErr(err)
	}
	remember := uint32(0)
	if st.RememberPassword {
		remember = 1
	}
	if err := key.SetDWordValue("RememberPassword", remember); err != nil {
		return mapErr(err)
	}
	if st.LoginUser != "" {
		if err := key.SetStringValue("LoginUser", st.LoginUser); err != nil {
			return mapErr(err)
		}
	}

	// Machine-wide mirror is best effort; most users cannot write HKLM
	// and the client works from HKCU alone.
	if mkey, _, err := registry.CreateKey(registry.LOCAL_MACHINE, mirrorKeyPath, registry.SET_VALUE); err == nil {
		_ = mkey.SetStringValue("AutoLoginUser", st.AutoLoginUser)
		_ = mkey.SetDWordValue("RememberPassword", remember)
		mkey.Close()
	}

	return nil
}

func (registryStore) Clear() error {
	key, err := registry.OpenKey(registry.CURRENT_USER, userKeyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return nil
		}
		return mapErr(err)
	}
	defer key.Close()

	if err := key.SetStringValue("AutoLoginUser", ""); err != nil {
		return mapErr(err)
	}
	return mapErr(key.SetDWordValue("RememberPassword", 0))
}
