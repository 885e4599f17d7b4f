// Package probe confirms via HTTP that a discovered URL is actually served.
package probe

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/devserve-run/devserve/internal/logging"
)

const (
	// DefaultWaitTimeout bounds the whole reachability wait.
	DefaultWaitTimeout = 10 * time.Second
	// DefaultRequestTimeout bounds a single HEAD/GET request.
	DefaultRequestTimeout = 800 * time.Millisecond
	// retryInterval is the pause between full candidate passes.
	retryInterval = 250 * time.Millisecond
)

// candidatePaths are probed in order for every pass: the bare root,
// a static index, and the dev-asset path common bundlers always serve.
var candidatePaths = []string{"", "index.html", "@vite/client"}

// Prober issues the HTTP probes used for reachability checks and port
// scanning.
type Prober struct {
	client         *http.Client
	requestTimeout time.Duration
}

// New creates a Prober. requestTimeout bounds each individual request;
// zero selects the default.
func New(requestTimeout time.Duration) *Prober {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &Prober{
		client: &http.Client{
			// Redirects count as a listening server; don't follow them.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		requestTimeout: requestTimeout,
	}
}

// Hit issues HEAD then GET against target and reports whether either
// returned a 2xx/3xx response.
func (p *Prober) Hit(ctx context.Context, target string) bool {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		reqCtx, cancel := context.WithTimeout(ctx, p.requestTimeout)
		req, err := http.NewRequestWithContext(reqCtx, method, target, nil)
		if err != nil {
			cancel()
			return false
		}
		resp, err := p.client.Do(req)
		if err != nil {
			cancel()
			continue
		}
		resp.Body.Close()
		cancel()
		if resp.StatusCode >= 200 && resp.StatusCode < 400 {
			return true
		}
	}
	return false
}

// WaitForReachable repeatedly probes the normalized URL's candidate
// paths until one answers 2xx/3xx or the timeout elapses. A false
// return is a confirmed-unreachable verdict, not a transient error.
func (p *Prober) WaitForReachable(ctx context.Context, rawURL string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	base, err := Normalize(rawURL)
	if err != nil {
		logging.Warn().Str("url", rawURL).Err(err).Msg("unprobeable URL")
		return false
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	policy := backoff.WithContext(backoff.NewConstantBackOff(retryInterval), waitCtx)
	err = backoff.Retry(func() error {
		for _, path := range candidatePaths {
			if p.Hit(waitCtx, base+path) {
				return nil
			}
		}
		return errNotYetReachable
	}, policy)
	return err == nil
}

var errNotYetReachable = &unreachableError{}

type unreachableError struct{}

func (*unreachableError) Error() string { return "not reachable yet" }

// Normalize rewrites loopback aliases to 127.0.0.1 and guarantees the
// path ends in a slash. The scheme defaults to http.
func Normalize(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	host := u.Hostname()
	switch host {
	case "0.0.0.0", "::", "localhost", "":
		host = "127.0.0.1"
	}
	if port := u.Port(); port != "" {
		u.Host = host + ":" + port
	} else {
		u.Host = host
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}
