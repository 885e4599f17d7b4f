package pm

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/logging"
)

// DefaultInstallTimeout bounds a single install command.
const DefaultInstallTimeout = 5 * time.Minute

// InstallError means every ordered install command exited non-zero.
// It is fatal for the whole serve attempt.
type InstallError struct {
	Dir      string
	Attempts []string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("dependency install failed in %s after %d attempts (%s)",
		e.Dir, len(e.Attempts), strings.Join(e.Attempts, ", "))
}

// Sink receives the combined output of install commands line by line.
type Sink func(line string)

// Service decides whether an install is needed and runs it.
type Service struct {
	bus      *event.Bus
	override string // forced manager name, empty to detect
	timeout  time.Duration
}

// NewService creates an install service. bus may be nil.
func NewService(bus *event.Bus, managerOverride string, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = DefaultInstallTimeout
	}
	return &Service{bus: bus, override: managerOverride, timeout: timeout}
}

// Resolve exposes manager detection with the service's override applied.
func (s *Service) Resolve(dir string) Resolution {
	return Resolve(dir, s.override)
}

// NeedsInstall reports whether the dependency tree must be (re)built.
//
// No expected lockfile: needed iff node_modules is absent. Lockfile
// expected but missing on disk: nothing to install from, not needed.
// node_modules absent: needed. Otherwise the install stamp must match
// the current lockfile hash and runtime version.
func (s *Service) NeedsInstall(ctx context.Context, dir string) bool {
	res := s.Resolve(dir)
	modulesDir := filepath.Join(dir, "node_modules")
	_, modulesErr := os.Stat(modulesDir)

	if res.Lockfile == "" {
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err != nil {
			// No manifest at all: nothing to install.
			return false
		}
		return modulesErr != nil
	}

	lockPath := filepath.Join(dir, res.Lockfile)
	hash, err := HashFile(lockPath)
	if err != nil {
		return false
	}
	if modulesErr != nil {
		return true
	}

	stamp, err := ReadStamp(dir)
	if err != nil {
		return true
	}
	return stamp.LockfileHash != hash || stamp.RuntimeVersion != runtimeVersion(ctx, res.Manager)
}

// Install runs the manager's reproducible install, then two universal
// fallbacks, stopping at the first success. Combined output goes to
// sink and to the event bus. On success a fresh stamp is written.
func (s *Service) Install(ctx context.Context, dir string, sink Sink) error {
	res := s.Resolve(dir)
	log := logging.Component("pm")

	s.publish(event.Event{Type: event.InstallStarted, Message: fmt.Sprintf("installing dependencies with %s", res.Manager)})

	var attempts []string
	for _, argv := range installCommands(res.Manager) {
		display := strings.Join(argv, " ")
		attempts = append(attempts, display)

		if _, err := exec.LookPath(argv[0]); err != nil {
			log.Debug().Str("command", display).Msg("install binary not found, trying next")
			continue
		}

		log.Info().Str("dir", dir).Str("command", display).Msg("running install")
		if err := s.runInstall(ctx, dir, argv, sink); err != nil {
			log.Warn().Str("command", display).Err(err).Msg("install attempt failed")
			continue
		}

		stamp := InstallStamp{
			RuntimeVersion: runtimeVersion(ctx, res.Manager),
			Timestamp:      time.Now().UTC(),
		}
		if res.Lockfile != "" {
			if hash, err := HashFile(filepath.Join(dir, res.Lockfile)); err == nil {
				stamp.LockfileHash = hash
			}
		}
		if err := WriteStamp(dir, stamp); err != nil {
			log.Warn().Err(err).Msg("could not write install stamp")
		}

		s.publish(event.Event{Type: event.InstallDone, Message: "dependencies installed"})
		return nil
	}

	err := &InstallError{Dir: dir, Attempts: attempts}
	s.publish(event.Event{Type: event.ServeError, Message: err.Error()})
	return err
}

// runInstall executes one install command, streaming combined output.
func (s *Service) runInstall(ctx context.Context, dir string, argv []string, sink Sink) error {
	cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "NO_COLOR=1", "FORCE_COLOR=0")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return err
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 256*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if sink != nil {
			sink(line)
		}
		s.publish(event.Event{Type: event.InstallOutput, Message: line})
	}

	return cmd.Wait()
}

func (s *Service) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
