//go:build !windows

package proc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectOutput(t *testing.T, h *Handle, want string, timeout time.Duration) string {
	t.Helper()
	var sb strings.Builder
	deadline := time.After(timeout)
	for {
		select {
		case chunk, ok := <-h.Output():
			if !ok {
				return sb.String()
			}
			sb.WriteString(chunk)
			if strings.Contains(sb.String(), want) {
				return sb.String()
			}
		case <-deadline:
			t.Fatalf("output %q not seen in time, got %q", want, sb.String())
		}
	}
}

func TestSpawnStreamsCombinedOutput(t *testing.T) {
	s := NewSupervisor(nil)
	t.Cleanup(s.Stop)

	h, err := s.Spawn(context.Background(), "echo out; echo err 1>&2", t.TempDir(), nil)
	require.NoError(t, err)

	out := collectOutput(t, h, "err", 5*time.Second)
	assert.Contains(t, out, "out")
	assert.Contains(t, out, "err")

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped")
	}
	assert.Nil(t, s.Active())
}

func TestSpawnDeliversTrailingOutput(t *testing.T) {
	s := NewSupervisor(nil)
	t.Cleanup(s.Stop)

	// The final write has no trailing newline and the process exits
	// right after it; the chunk must still arrive before close.
	h, err := s.Spawn(context.Background(), `printf 'first\nlast-without-newline'`, t.TempDir(), nil)
	require.NoError(t, err)

	var sb strings.Builder
	for chunk := range h.Output() {
		sb.WriteString(chunk)
	}
	assert.Contains(t, sb.String(), "first")
	assert.Contains(t, sb.String(), "last-without-newline")

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process was not reaped")
	}
}

func TestSpawnSetsDefaultEnv(t *testing.T) {
	s := NewSupervisor(nil)
	t.Cleanup(s.Stop)

	h, err := s.Spawn(context.Background(), `echo "host=$HOST browser=$BROWSER"`, t.TempDir(), nil)
	require.NoError(t, err)

	out := collectOutput(t, h, "host=", 5*time.Second)
	assert.Contains(t, out, "host=127.0.0.1")
	assert.Contains(t, out, "browser=none")
}

func TestSpawnExtraEnvOverrides(t *testing.T) {
	s := NewSupervisor(nil)
	t.Cleanup(s.Stop)

	h, err := s.Spawn(context.Background(), `echo "port=$PORT"`, t.TempDir(), []string{"PORT=4567"})
	require.NoError(t, err)

	out := collectOutput(t, h, "port=", 5*time.Second)
	assert.Contains(t, out, "port=4567")
}

func TestSpawnRunsInDir(t *testing.T) {
	s := NewSupervisor(nil)
	t.Cleanup(s.Stop)

	dir := t.TempDir()
	h, err := s.Spawn(context.Background(), "pwd", dir, nil)
	require.NoError(t, err)

	out := collectOutput(t, h, "\n", 5*time.Second)
	assert.Contains(t, out, dir)
}

func TestSpawnReplacesActiveProcess(t *testing.T) {
	s := NewSupervisor(nil)
	t.Cleanup(s.Stop)

	first, err := s.Spawn(context.Background(), "sleep 30", t.TempDir(), nil)
	require.NoError(t, err)

	second, err := s.Spawn(context.Background(), "sleep 30", t.TempDir(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.PID(), second.PID())
	assert.Same(t, second, s.Active())

	select {
	case <-first.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("first process still running after replacement")
	}
}

func TestStopKillsProcessTree(t *testing.T) {
	s := NewSupervisor(nil)

	// The shell spawns a child of its own; killing the group takes
	// both down.
	h, err := s.Spawn(context.Background(), "sleep 30 & wait", t.TempDir(), nil)
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process tree survived Stop")
	}
	assert.Nil(t, s.Active())
}

func TestStopHandleIdempotent(t *testing.T) {
	s := NewSupervisor(nil)

	h, err := s.Spawn(context.Background(), "sleep 30", t.TempDir(), nil)
	require.NoError(t, err)

	s.StopHandle(h)
	s.StopHandle(h)
	s.StopHandle(nil)

	select {
	case <-h.Done():
	default:
		t.Fatal("handle still live after StopHandle")
	}
}

func TestSpawnErrorOnBadShell(t *testing.T) {
	s := NewSupervisor(nil)
	s.shell = "/nonexistent/shell"

	_, err := s.Spawn(context.Background(), "echo hi", t.TempDir(), nil)
	var spawnErr *SpawnError
	require.ErrorAs(t, err, &spawnErr)
	assert.Equal(t, "echo hi", spawnErr.Command)
	assert.NotNil(t, spawnErr.Unwrap())
}

func TestKillTreeHandlesBadPids(t *testing.T) {
	KillTree(0)
	KillTree(-1)

	// An already-exited pid is a no-op.
	s := NewSupervisor(nil)
	h, err := s.Spawn(context.Background(), "true", t.TempDir(), nil)
	require.NoError(t, err)
	<-h.Done()
	KillTree(h.PID())
}

func TestDetectShell(t *testing.T) {
	shell := detectShell()
	assert.NotEmpty(t, shell)

	t.Setenv("SHELL", "/bin/fish")
	assert.NotEqual(t, "/bin/fish", detectShell())

	t.Setenv("SHELL", "/bin/zsh")
	assert.Equal(t, "/bin/zsh", detectShell())
}
