package discover

import (
	"context"
	"errors"
	"time"

	"github.com/devserve-run/devserve/internal/logging"
	"github.com/devserve-run/devserve/internal/probe"
)

// DefaultTimeout bounds the whole discovery race.
const DefaultTimeout = 30 * time.Second

var (
	// ErrTimeout means neither log matching nor port scanning produced a
	// URL before the deadline.
	ErrTimeout = errors.New("discovery timed out")
	// ErrProcessExited means the supervised process exited before any
	// URL was discovered.
	ErrProcessExited = errors.New("process exited before a URL was discovered")
)

// Options configures a discovery race.
type Options struct {
	// Timeout bounds the whole race. Zero selects DefaultTimeout.
	Timeout time.Duration
	// ScanWindow bounds port scanning. Zero selects DefaultScanWindow.
	ScanWindow time.Duration
	// ProbeTimeout bounds individual probes. Zero selects the default.
	ProbeTimeout time.Duration
	// Ports overrides the port catalogue.
	Ports []int
	// ExtraPatterns are configuration-supplied ready patterns, tried
	// before the built-in table.
	ExtraPatterns []string
}

// Discoverer races log extraction against port scanning.
type Discoverer struct {
	opts   Options
	prober *probe.Prober
}

// New creates a Discoverer.
func New(opts Options) *Discoverer {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Discoverer{
		opts:   opts,
		prober: probe.New(opts.ProbeTimeout),
	}
}

// Discover waits for the first of: a ready-pattern match on output, a
// port-scan hit, process exit (output closed), or the deadline. The
// returned URL is normalized. Log matches win same-instant ties with
// the port scanner.
//
// The race runs under its own context so the losing branch stops
// probing as soon as a winner settles.
func (d *Discoverer) Discover(ctx context.Context, output <-chan string) (string, error) {
	raceCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	logCh := make(chan string, 1)
	scanCh := make(chan string, 1)

	go d.watchLogs(output, logCh)
	go func() {
		scanner := NewScanner(d.prober, d.opts.Ports, d.opts.ScanWindow)
		if url, ok := scanner.Scan(raceCtx); ok {
			scanCh <- url
		}
	}()

	select {
	case url, ok := <-logCh:
		if !ok {
			return "", ErrProcessExited
		}
		return url, nil
	case url := <-scanCh:
		// Tie-break: prefer a log match that settled in the same instant.
		select {
		case fromLog, ok := <-logCh:
			if ok {
				return fromLog, nil
			}
		default:
		}
		return url, nil
	case <-raceCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", ErrTimeout
	}
}

// watchLogs feeds output chunks into the matcher. The result channel
// is closed without a value when the process output ends first.
func (d *Discoverer) watchLogs(output <-chan string, result chan<- string) {
	matcher := NewMatcher(d.opts.ExtraPatterns)
	for chunk := range output {
		match, ok := matcher.Append(chunk)
		if !ok {
			continue
		}
		normalized, err := probe.Normalize(match.URL)
		if err != nil {
			logging.Debug().Str("url", match.URL).Err(err).Msg("unparseable ready-line URL")
			continue
		}
		logging.Debug().Str("pattern", match.Pattern).Str("url", normalized).Msg("ready line matched")
		result <- normalized
		return
	}
	close(result)
}
