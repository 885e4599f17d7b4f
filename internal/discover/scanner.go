package discover

import (
	"context"
	"fmt"
	"time"

	"github.com/devserve-run/devserve/internal/probe"
)

// DefaultPorts is the catalogue of well-known dev-server ports, probed
// in order.
var DefaultPorts = []int{3000, 5173, 8080, 4200, 8000, 1234, 4321, 5000, 3001, 8081, 9000}

const (
	// DefaultScanWindow bounds repeated scanning passes.
	DefaultScanWindow = 20 * time.Second
	// scanPassPause separates full passes over the catalogue.
	scanPassPause = 300 * time.Millisecond
)

// Scanner probes the port catalogue until something answers or the
// scanning window closes.
type Scanner struct {
	prober *probe.Prober
	ports  []int
	window time.Duration
}

// NewScanner builds a Scanner. Zero values select the defaults.
func NewScanner(prober *probe.Prober, ports []int, window time.Duration) *Scanner {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	if window <= 0 {
		window = DefaultScanWindow
	}
	return &Scanner{prober: prober, ports: ports, window: window}
}

// Scan probes every catalogued port on 127.0.0.1 and localhost in
// repeated passes. It returns the normalized base URL of the first
// port that answers, or false once the window elapses or ctx is
// cancelled.
func (s *Scanner) Scan(ctx context.Context) (string, bool) {
	scanCtx, cancel := context.WithTimeout(ctx, s.window)
	defer cancel()

	for {
		for _, port := range s.ports {
			for _, host := range []string{"127.0.0.1", "localhost"} {
				if scanCtx.Err() != nil {
					return "", false
				}
				target := fmt.Sprintf("http://%s:%d/", host, port)
				if s.prober.Hit(scanCtx, target) {
					normalized, err := probe.Normalize(target)
					if err != nil {
						continue
					}
					return normalized, true
				}
			}
		}

		select {
		case <-scanCtx.Done():
			return "", false
		case <-time.After(scanPassPause):
		}
	}
}
