//go:build !windows

package window

// Window enumeration has no portable equivalent off Windows; an empty
// snapshot classifies as Indeterminate, which callers already treat as
// "not verified".
type platformEnumerator struct{}

func (platformEnumerator) Visible() ([]Window, error) {
	return nil, nil
}
