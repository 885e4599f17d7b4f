// Package static serves a local directory over an ephemeral loopback
// HTTP server. It is the terminal fallback when no dev server can be
// launched for a project.
package static

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/devserve-run/devserve/internal/event"
	"github.com/devserve-run/devserve/internal/logging"
)

// contentTypes maps file extensions to content types. Unknown
// extensions fall back to application/octet-stream.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".json":  "application/json",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".txt":   "text/plain; charset=utf-8",
	".xml":   "application/xml",
	".pdf":   "application/pdf",
	".wasm":  "application/wasm",
	".map":   "application/json",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
	".mp3":   "audio/mpeg",
}

// Handle is a running static file server.
type Handle struct {
	root     string
	srv      *http.Server
	localURL string
	stopOnce sync.Once
}

// LocalURL returns the server's base URL (always 127.0.0.1, trailing slash).
func (h *Handle) LocalURL() string { return h.localURL }

// Root returns the served directory.
func (h *Handle) Root() string { return h.root }

// Stop shuts the server down. Idempotent.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		_ = h.srv.Close()
	})
}

// Manager owns the single active static server; starting a new one
// stops any prior instance first.
type Manager struct {
	mu     sync.Mutex
	active *Handle
	bus    *event.Bus
}

// NewManager creates a Manager. bus may be nil.
func NewManager(bus *event.Bus) *Manager {
	return &Manager{bus: bus}
}

// Serve starts a file server for dir on an OS-assigned loopback port,
// replacing any previously active instance.
func (m *Manager) Serve(dir string) (*Handle, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", root)
	}

	m.Stop()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	h := &Handle{root: root}
	h.srv = &http.Server{
		Handler:           http.HandlerFunc(h.handle),
		ReadHeaderTimeout: 5 * time.Second,
	}
	h.localURL = fmt.Sprintf("http://127.0.0.1:%d/", listener.Addr().(*net.TCPAddr).Port)

	go func() {
		if err := h.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log := logging.Component("static")
			log.Warn().Err(err).Msg("static server stopped")
		}
	}()

	m.mu.Lock()
	m.active = h
	m.mu.Unlock()

	log := logging.Component("static")
	log.Info().Str("dir", root).Str("url", h.localURL).Msg("static server started")
	m.publish(event.Event{Type: event.StaticStarted, Message: "serving " + root + " at " + h.localURL})

	return h, nil
}

// Active returns the currently running static server, or nil.
func (m *Manager) Active() *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Stop shuts down the active static server, if any. Safe to call when
// nothing is active.
func (m *Manager) Stop() {
	m.mu.Lock()
	h := m.active
	m.active = nil
	m.mu.Unlock()

	if h == nil {
		return
	}
	h.Stop()
	m.publish(event.Event{Type: event.StaticStopped, Message: "static server stopped"})
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// handle serves one request: resolve inside the root only, map
// directories to index.html, infer a content type, and stream the file.
func (h *Handle) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resolved, ok := h.resolve(r.URL.Path)
	if !ok {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(resolved)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		resolved = filepath.Join(resolved, "index.html")
		info, err = os.Stat(resolved)
		if err != nil {
			http.NotFound(w, r)
			return
		}
	}
	if !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	ctype, ok := contentTypes[strings.ToLower(filepath.Ext(resolved))]
	if !ok {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Content-Length", fmt.Sprint(info.Size()))

	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}

	f, err := os.Open(resolved)
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		// Headers are gone; all we can do is note it.
		log := logging.Component("static")
		log.Debug().Str("path", resolved).Err(err).Msg("stream interrupted")
	}
}

// resolve maps a request path to a filesystem path inside the root.
// Paths escaping the root report false.
func (h *Handle) resolve(requestPath string) (string, bool) {
	// The request path arrives percent-decoded; any ".." segment is an
	// escape attempt.
	for _, seg := range strings.Split(requestPath, "/") {
		if seg == ".." {
			return "", false
		}
	}

	cleaned := filepath.Clean("/" + requestPath)
	resolved := filepath.Join(h.root, filepath.FromSlash(cleaned))

	if resolved != h.root && !strings.HasPrefix(resolved, h.root+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}
