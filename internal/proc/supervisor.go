// Package proc spawns and supervises the single active dev-server
// process, including forceful process-tree termination.
package proc

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/logging"
)

const (
	// outputChunkSize is the read size for the combined output pipe.
	outputChunkSize = 4 * 1024
	// outputBuffer bounds the chunk channel consumed by discovery.
	outputBuffer = 256
	// termGrace is how long a process group gets between SIGTERM and
	// SIGKILL.
	termGrace = 500 * time.Millisecond
)

// DefaultEnv is added to every spawned command: bind to loopback, do
// not open a browser, and suppress ANSI color so log matching stays
// deterministic.
var DefaultEnv = []string{
	"HOST=127.0.0.1",
	"BROWSER=none",
	"NO_COLOR=1",
	"FORCE_COLOR=0",
}

// SpawnError means the chosen command could not be started at all.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("could not start %q: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Handle is a supervised child process.
type Handle struct {
	cmd    *exec.Cmd
	pid    int
	output chan string
	// drained is closed once the output pipe has been read to EOF;
	// Wait must not run before that.
	drained chan struct{}
	done    chan struct{}
}

// PID returns the child's process id.
func (h *Handle) PID() int { return h.pid }

// Output is the bounded channel of combined stdout/stderr chunks.
// It is closed when the process exits. Chunks are dropped, not
// buffered unboundedly, when the consumer falls behind.
func (h *Handle) Output() <-chan string { return h.output }

// Done is closed when the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Supervisor owns the single active dev-server process. Starting a new
// one always stops the previous one first.
type Supervisor struct {
	mu     sync.Mutex
	active *Handle
	bus    *event.Bus
	shell  string
}

// NewSupervisor creates a Supervisor. bus may be nil.
func NewSupervisor(bus *event.Bus) *Supervisor {
	return &Supervisor{bus: bus, shell: detectShell()}
}

func detectShell() string {
	if runtime.GOOS == "windows" {
		if comspec := os.Getenv("COMSPEC"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	}

	if s := os.Getenv("SHELL"); s != "" {
		// Exclude shells with incompatible -c semantics
		if s != "/bin/fish" && s != "/usr/bin/fish" &&
			s != "/bin/nu" && s != "/usr/bin/nu" {
			return s
		}
	}

	if bash, err := exec.LookPath("bash"); err == nil {
		return bash
	}
	return "/bin/sh"
}

// Spawn starts a shell command in dir, replacing any previously active
// process. The handle's output channel carries combined stdout/stderr.
func (s *Supervisor) Spawn(ctx context.Context, command, dir string, extraEnv []string) (*Handle, error) {
	s.Stop()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, s.shell, "/c", command)
	} else {
		cmd = exec.CommandContext(ctx, s.shell, "-c", command)
	}
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), DefaultEnv...)
	cmd.Env = append(cmd.Env, extraEnv...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: command, Err: err}
	}

	h := &Handle{
		cmd:     cmd,
		pid:     cmd.Process.Pid,
		output:  make(chan string, outputBuffer),
		drained: make(chan struct{}),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.active = h
	s.mu.Unlock()

	log := logging.Component("proc")
	log.Info().Int("pid", h.pid).Str("dir", dir).Str("command", command).Msg("process spawned")
	s.publish(event.Event{Type: event.ProcessSpawned, Message: command, Data: map[string]any{"pid": h.pid}})

	go s.pump(h, bufio.NewReader(stdout))
	go s.reap(h)

	return h, nil
}

// pump forwards output chunks to the handle's channel and mirrors them
// to the event bus. A slow consumer loses chunks instead of stalling
// the child.
func (s *Supervisor) pump(h *Handle, r *bufio.Reader) {
	buf := make([]byte, outputChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			select {
			case h.output <- chunk:
			default:
			}
			s.publish(event.Event{Type: event.ProcessOutput, Message: chunk})
		}
		if err != nil {
			close(h.output)
			close(h.drained)
			return
		}
	}
}

// reap waits for the process to exit, then clears the singleton so
// pending discovery waits unblock with no result. Waiting starts only
// after the pipe hits EOF so trailing output is never lost.
func (s *Supervisor) reap(h *Handle) {
	<-h.drained
	err := h.cmd.Wait()
	close(h.done)

	s.mu.Lock()
	if s.active == h {
		s.active = nil
	}
	s.mu.Unlock()

	log := logging.Component("proc")
	if err != nil {
		log.Info().Int("pid", h.pid).Err(err).Msg("process exited")
	} else {
		log.Info().Int("pid", h.pid).Msg("process exited")
	}
	s.publish(event.Event{Type: event.ProcessExited, Data: map[string]any{"pid": h.pid}})
}

// Active returns the currently supervised process, or nil.
func (s *Supervisor) Active() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop kills the active process tree, if any, and waits for it to be
// reaped. Safe to call when nothing is active.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	h := s.active
	s.active = nil
	s.mu.Unlock()

	if h == nil {
		return
	}

	KillTree(h.pid)

	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		log := logging.Component("proc")
		log.Warn().Int("pid", h.pid).Msg("process did not reap in time")
	}
}

// StopHandle kills a specific handle's process tree if it is still the
// active one or already detached. Idempotent.
func (s *Supervisor) StopHandle(h *Handle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	if s.active == h {
		s.active = nil
	}
	s.mu.Unlock()

	select {
	case <-h.done:
		return // already exited
	default:
	}

	KillTree(h.pid)
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
	}
}

func (s *Supervisor) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
