// Package orchestrator composes installation, launch strategies,
// discovery, and fallback static serving into the externally visible
// "serve this directory" operation.
package orchestrator

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/devserve-run/devserve/internal/discover"
	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/launch"
	"github.com/devserve-run/devserve/internal/logging"
	"github.com/devserve-run/devserve/internal/pm"
	"github.com/devserve-run/devserve/internal/probe"
	"github.com/devserve-run/devserve/internal/proc"
	"github.com/devserve-run/devserve/internal/static"
	"github.com/devserve-run/devserve/pkg/types"
)

// ServeResult is the artifact of a successful serve attempt.
type ServeResult struct {
	// LocalURL is the normalized loopback URL.
	LocalURL string `json:"localUrl"`
	// ExternalURL is the same server addressed by a LAN-visible
	// interface, when one exists.
	ExternalURL string `json:"externalUrl"`
	// Strategy names the launch strategy that produced the result.
	Strategy launch.Kind `json:"strategy"`
	// Stop tears down exactly the resource that produced the result.
	// Idempotent.
	Stop func() `json:"-"`
}

// Orchestrator owns the process and static-server singletons and runs
// the launch fallback chain.
type Orchestrator struct {
	cfg        *types.Config
	bus        *event.Bus
	supervisor *proc.Supervisor
	staticMgr  *static.Manager
	installer  *pm.Service
	prober     *probe.Prober

	// serveMu serializes Serve calls so singleton teardown and startup
	// never interleave.
	serveMu sync.Mutex
}

// New creates an Orchestrator. cfg and bus may be nil.
func New(cfg *types.Config, bus *event.Bus) *Orchestrator {
	if cfg == nil {
		cfg = &types.Config{}
	}
	var managerOverride string
	if cfg.Manager != "" {
		managerOverride = cfg.Manager
	}
	installTimeout := time.Duration(0)
	if cfg.Install != nil && cfg.Install.TimeoutMs > 0 {
		installTimeout = time.Duration(cfg.Install.TimeoutMs) * time.Millisecond
	}
	return &Orchestrator{
		cfg:        cfg,
		bus:        bus,
		supervisor: proc.NewSupervisor(bus),
		staticMgr:  static.NewManager(bus),
		installer:  pm.NewService(bus, managerOverride, installTimeout),
		prober:     probe.New(requestTimeout(cfg)),
	}
}

// Serve launches a dev server for dir, falling back strategy by
// strategy and finally to the static file server. Only an install
// failure or an unsupported entry propagates as an error.
func (o *Orchestrator) Serve(ctx context.Context, dir, explicitCommand string) (*ServeResult, error) {
	o.serveMu.Lock()
	defer o.serveMu.Unlock()

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	// A new serve attempt implicitly tears down whatever is active.
	o.supervisor.Stop()
	o.staticMgr.Stop()

	attempt := ulid.Make().String()
	log := logging.Component("orchestrator")
	o.publish(event.Event{Type: event.ServeStarting, Attempt: attempt, Message: "serving " + dir})

	skipInstall := o.cfg.Install != nil && o.cfg.Install.Skip
	if !skipInstall && o.installer.NeedsInstall(ctx, dir) {
		if err := o.installer.Install(ctx, dir, nil); err != nil {
			// Fatal: later strategies cannot be trusted without a
			// consistent dependency tree.
			return nil, err
		}
	}

	resolution := o.installer.Resolve(dir)
	plan := launch.Build(dir, explicitCommand, resolution.Manager)

	bundlerTried := false
	for _, cmd := range plan.Commands {
		if cmd.Kind == launch.KindExplicit {
			if err := launch.ValidateCommand(cmd.Command); err != nil {
				log.Warn().Str("command", cmd.Command).Err(err).Msg("explicit command is not valid shell, skipping")
				continue
			}
		}
		if cmd.Kind == launch.KindBundlerDev || cmd.Kind == launch.KindBundlerPreview {
			bundlerTried = true
		}

		result, err := o.attemptCommand(ctx, attempt, cmd, dir)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Info().Str("strategy", string(cmd.Kind)).Err(err).Msg("strategy failed, advancing")
			o.publish(event.Event{Type: event.ServeError, Attempt: attempt,
				Message: fmt.Sprintf("%s strategy failed: %v", cmd.Kind, err)})
			continue
		}
		o.publish(event.Event{Type: event.ServeReady, Attempt: attempt, Message: result.LocalURL})
		return result, nil
	}

	// Entry pages that need bundling must not fall through to raw
	// source serving.
	if plan.Entry != nil && plan.Entry.NeedsBundler {
		err := &UnsupportedEntryError{Entry: plan.Entry.HTMLPath, Script: plan.Entry.ScriptSrc}
		if !bundlerTried {
			log.Warn().Str("entry", plan.Entry.HTMLPath).Msg("entry needs bundling but no bundler was invocable")
		}
		o.publish(event.Event{Type: event.ServeError, Attempt: attempt, Message: err.Error()})
		return nil, err
	}

	// Terminal state: static fallback. Cannot fail for an existing
	// directory.
	serveDir := dir
	if plan.Entry != nil {
		serveDir = plan.Entry.Dir()
	}
	result, err := o.serveStatic(serveDir)
	if err != nil {
		return nil, err
	}
	o.publish(event.Event{Type: event.ServeReady, Attempt: attempt, Message: result.LocalURL})
	return result, nil
}

// ServeDirectoryDirectly serves dir with the static file server,
// bypassing strategy selection.
func (o *Orchestrator) ServeDirectoryDirectly(dir string) (*ServeResult, error) {
	o.serveMu.Lock()
	defer o.serveMu.Unlock()
	return o.serveStatic(dir)
}

// StopActiveProcess tears down the supervised process, if any.
// Idempotent.
func (o *Orchestrator) StopActiveProcess() {
	o.supervisor.Stop()
}

// StopActiveStaticServer tears down the static server, if any.
// Idempotent.
func (o *Orchestrator) StopActiveStaticServer() {
	o.staticMgr.Stop()
}

// attemptCommand runs one launch strategy end to end: spawn, discovery
// race, reachability confirmation. Any failure tears the process down
// and reports a strategy-level error.
func (o *Orchestrator) attemptCommand(ctx context.Context, attempt string, cmd launch.Command, projectDir string) (*ServeResult, error) {
	handle, err := o.supervisor.Spawn(ctx, cmd.Command, cmd.Dir, nil)
	if err != nil {
		return nil, err
	}

	disc := discover.New(o.discoveryOptions())
	url, err := disc.Discover(ctx, handle.Output())
	if err != nil {
		o.supervisor.StopHandle(handle)
		return nil, err
	}
	o.publish(event.Event{Type: event.DiscoveryURL, Attempt: attempt, Message: url})

	if !o.prober.WaitForReachable(ctx, url, o.reachTimeout()) {
		o.supervisor.StopHandle(handle)
		return nil, ErrUnreachable
	}

	// Flag dependency drift for as long as this server runs.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	go func() {
		if err := o.installer.Watch(watchCtx, projectDir); err != nil {
			log := logging.Component("orchestrator")
			log.Debug().Err(err).Msg("lockfile watch unavailable")
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancelWatch()
			o.supervisor.StopHandle(handle)
			o.publish(event.Event{Type: event.ServeStopped, Attempt: attempt})
		})
	}

	return &ServeResult{
		LocalURL:    url,
		ExternalURL: externalURL(url),
		Strategy:    cmd.Kind,
		Stop:        stop,
	}, nil
}

// serveStatic starts the static fallback and wraps it in a ServeResult.
func (o *Orchestrator) serveStatic(dir string) (*ServeResult, error) {
	handle, err := o.staticMgr.Serve(dir)
	if err != nil {
		return nil, err
	}

	var once sync.Once
	stop := func() {
		once.Do(handle.Stop)
	}

	return &ServeResult{
		LocalURL:    handle.LocalURL(),
		ExternalURL: externalURL(handle.LocalURL()),
		Strategy:    launch.KindStatic,
		Stop:        stop,
	}, nil
}

func (o *Orchestrator) discoveryOptions() discover.Options {
	opts := discover.Options{
		Ports:         o.cfg.Ports,
		ExtraPatterns: o.cfg.ReadyPatterns,
	}
	if d := o.cfg.Discovery; d != nil {
		if d.TimeoutMs > 0 {
			opts.Timeout = time.Duration(d.TimeoutMs) * time.Millisecond
		}
		if d.ScanWindowMs > 0 {
			opts.ScanWindow = time.Duration(d.ScanWindowMs) * time.Millisecond
		}
		if d.ProbeTimeoutMs > 0 {
			opts.ProbeTimeout = time.Duration(d.ProbeTimeoutMs) * time.Millisecond
		}
	}
	return opts
}

func (o *Orchestrator) reachTimeout() time.Duration {
	if r := o.cfg.Reach; r != nil && r.TimeoutMs > 0 {
		return time.Duration(r.TimeoutMs) * time.Millisecond
	}
	return probe.DefaultWaitTimeout
}

func requestTimeout(cfg *types.Config) time.Duration {
	if cfg != nil && cfg.Reach != nil && cfg.Reach.RequestTimeoutMs > 0 {
		return time.Duration(cfg.Reach.RequestTimeoutMs) * time.Millisecond
	}
	return 0
}

// externalURL rewrites a loopback URL to the first non-loopback IPv4
// interface address, for callers on the same LAN. Falls back to the
// local URL.
func externalURL(localURL string) string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return localURL
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil {
			continue
		}
		return strings.Replace(localURL, "127.0.0.1", ip4.String(), 1)
	}
	return localURL
}

func (o *Orchestrator) publish(e event.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}
