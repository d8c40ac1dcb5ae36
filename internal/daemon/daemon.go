// Package daemon manages the background WebDAV server process: spawning
// a detached child, probing whether it is still alive, and stopping it
// by signal and, on POSIX, by port ownership as a fallback for orphans
// left behind by a killed parent (spec §4.9).
package daemon

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/filen-go/filen-cli/internal/localstate"
	"github.com/filen-go/filen-cli/internal/model"
)

// Manager drives start/stop/status for the WebDAV daemon process.
type Manager struct {
	store *localstate.Store
	log   zerolog.Logger
}

// New builds a Manager bound to the given local state store.
func New(store *localstate.Store, log zerolog.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// aliveGracePeriod is how long StartBackground waits after spawning before
// confirming the child is still alive.
const aliveGracePeriod = 300 * time.Millisecond

// killGracePeriod is how long Stop waits after SIGTERM before escalating
// to SIGKILL.
const killGracePeriod = 500 * time.Millisecond

// IsRunning reports whether a daemon PID file exists and names a live
// process.
func (m *Manager) IsRunning() (pid int, running bool) {
	pid, err := m.store.ReadWebDAVPID()
	if err != nil {
		return 0, false
	}
	alive, err := processAlive(pid)
	if err != nil || !alive {
		return pid, false
	}
	return pid, true
}

// StartBackground spawns a detached child that re-enters the current
// executable with --daemon, waits briefly, and confirms the child is
// still alive before persisting its PID. It refuses if a daemon is
// already running.
func (m *Manager) StartBackground(ctx context.Context, extraArgs ...string) (pid int, err error) {
	if existing, running := m.IsRunning(); running {
		return existing, fmt.Errorf("daemon: webdav server already running (pid %d): %w", existing, model.ErrConflict)
	}

	exe, err := os.Executable()
	if err != nil {
		return 0, &model.FatalError{Cause: fmt.Errorf("daemon: resolve executable: %w", err)}
	}

	args := append([]string{"--daemon"}, extraArgs...)
	cmd := exec.Command(exe, args...)
	detachProcess(cmd)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("daemon: spawn child: %w", err)
	}
	childPID := cmd.Process.Pid

	// Release our hold on the child so it survives this process exiting;
	// liveness from here on is tracked by PID, not by *os.Process.
	if err := cmd.Process.Release(); err != nil {
		m.log.Warn().Err(err).Msg("daemon: release child process handle")
	}

	time.Sleep(aliveGracePeriod)
	alive, err := processAlive(childPID)
	if err != nil || !alive {
		return 0, &model.FatalError{Cause: fmt.Errorf("daemon: child process %d did not stay alive", childPID)}
	}

	if err := m.store.SaveWebDAVPID(childPID); err != nil {
		return 0, fmt.Errorf("daemon: persist pid: %w", err)
	}
	m.log.Info().Int("pid", childPID).Msg("daemon: webdav server started")
	return childPID, nil
}

// Stop signals the daemon to exit: SIGTERM, a 500ms grace period, then
// SIGKILL if it is still alive. On POSIX it additionally looks up any
// process bound to port and kills it too, cleaning up orphans left by a
// killed parent whose child never received its own signal.
func (m *Manager) Stop(port int) error {
	pid, running := m.IsRunning()
	if !running && pid == 0 {
		return fmt.Errorf("daemon: no webdav server is running: %w", model.ErrNotFound)
	}

	if pid != 0 {
		if err := signalProcess(pid, false); err != nil {
			m.log.Warn().Err(err).Int("pid", pid).Msg("daemon: sigterm failed")
		}
		time.Sleep(killGracePeriod)
		if alive, _ := processAlive(pid); alive {
			if err := signalProcess(pid, true); err != nil {
				m.log.Warn().Err(err).Int("pid", pid).Msg("daemon: sigkill failed")
			}
		}
	}

	if runtime.GOOS != "windows" {
		if orphanPID, err := findPortOwner(port); err == nil && orphanPID != 0 && orphanPID != pid {
			m.log.Info().Int("pid", orphanPID).Int("port", port).Msg("daemon: killing orphaned process bound to port")
			_ = signalProcess(orphanPID, true)
		}
	}

	if err := m.store.ClearWebDAVPID(); err != nil {
		return fmt.Errorf("daemon: clear pid file: %w", err)
	}
	return nil
}

// Test issues an HTTP PROPFIND against the configured WebDAV port and
// reports whether it received a response that is neither a 5xx nor a
// 401 credentials rejection, rather than trusting the PID file alone
// (spec §4.9's webdav-test).
func (m *Manager) Test(ctx context.Context, scheme string, port int, username, password string) error {
	url := fmt.Sprintf("%s://127.0.0.1:%d/", scheme, port)
	req, err := http.NewRequestWithContext(ctx, "PROPFIND", url, nil)
	if err != nil {
		return fmt.Errorf("daemon: build propfind request: %w", err)
	}
	req.Header.Set("Depth", "0")
	req.SetBasicAuth(username, password)

	client := &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: scheme == "https"},
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("daemon: webdav connection test failed: %w", &model.TransientError{Cause: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("daemon: webdav server returned %d", resp.StatusCode)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("daemon: webdav server rejected the credentials: %w", model.ErrAuth)
	}
	return nil
}

func processAlive(pid int) (bool, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false, nil
	}
	return proc.IsRunning()
}

func signalProcess(pid int, force bool) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		return proc.Kill()
	}
	sig := syscall.SIGTERM
	if force {
		sig = syscall.SIGKILL
	}
	return proc.Signal(sig)
}

// findPortOwner shells out to lsof to find the PID bound to a TCP port,
// mirroring the original client's "lsof -t -i :PORT" fallback for
// cleaning up orphaned listeners.
func findPortOwner(port int) (int, error) {
	out, err := exec.Command("lsof", "-t", "-i", ":"+strconv.Itoa(port)).Output()
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(firstLine(out))
	if err != nil {
		return 0, err
	}
	return pid, nil
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
