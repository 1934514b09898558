//go:build !windows

package process

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// platformListProcesses scans /proc for running processes. Name comes
// from /proc/<pid>/comm, which the kernel truncates to 15 bytes; long
// helper names are matched on that prefix by callers if needed, but
// every Steam family name fits.
func platformListProcesses() ([]Info, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var out []Info
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			continue
		}
		out = append(out, Info{PID: pid, Name: strings.TrimSpace(string(comm))})
	}
	return out, nil
}

func platformKill(pid int) error {
	return syscall.Kill(pid, syscall.SIGKILL)
}

func platformAlive(pid int) bool {
	// Signal 0 probes existence without delivering anything.
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}

func platformExecutableName(pid int) string {
	comm, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "comm"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(comm))
}

// detach puts the child in its own session so it survives our exit and
// never receives our terminal signals.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
