package static

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSite(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>home</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "docs"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "index.html"), []byte("<h1>docs</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.unknownext"), []byte("blob"), 0644))
	return dir
}

func startServer(t *testing.T) (*Manager, *Handle) {
	t.Helper()
	m := NewManager(nil)
	h, err := m.Serve(newTestSite(t))
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, h
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestServeRootIndex(t *testing.T) {
	_, h := startServer(t)

	resp := get(t, h.LocalURL())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>home</h1>", string(body))
}

func TestServeSubdirectoryIndex(t *testing.T) {
	_, h := startServer(t)

	resp := get(t, h.LocalURL()+"docs/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "<h1>docs</h1>", string(body))
}

func TestServeContentTypes(t *testing.T) {
	_, h := startServer(t)

	resp := get(t, h.LocalURL()+"app.js")
	assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, "14", resp.Header.Get("Content-Length"))

	resp = get(t, h.LocalURL()+"data.unknownext")
	assert.Equal(t, "application/octet-stream", resp.Header.Get("Content-Type"))
}

func TestServeNotFound(t *testing.T) {
	_, h := startServer(t)

	resp := get(t, h.LocalURL()+"missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeTraversalRejected(t *testing.T) {
	_, h := startServer(t)

	// Raw request so the client does not clean the path for us.
	req, err := http.NewRequest(http.MethodGet, h.LocalURL(), nil)
	require.NoError(t, err)
	req.URL.Path = "/../../etc/passwd"

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeEncodedTraversalRejected(t *testing.T) {
	_, h := startServer(t)

	req, err := http.NewRequest(http.MethodGet, h.LocalURL()+"%2e%2e/%2e%2e/etc/passwd", nil)
	require.NoError(t, err)

	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeMethodNotAllowed(t *testing.T) {
	_, h := startServer(t)

	resp, err := http.Post(h.LocalURL(), "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "GET, HEAD", resp.Header.Get("Allow"))
}

func TestServeHead(t *testing.T) {
	_, h := startServer(t)

	resp, err := http.Head(h.LocalURL() + "index.html")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "13", resp.Header.Get("Content-Length"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestServeReplacesActiveInstance(t *testing.T) {
	m := NewManager(nil)
	t.Cleanup(m.Stop)

	first, err := m.Serve(newTestSite(t))
	require.NoError(t, err)

	second, err := m.Serve(newTestSite(t))
	require.NoError(t, err)
	assert.NotEqual(t, first.LocalURL(), second.LocalURL())
	assert.Same(t, second, m.Active())

	// The first server no longer accepts connections.
	_, err = http.Get(first.LocalURL())
	assert.Error(t, err)

	resp := get(t, second.LocalURL())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeRejectsFilePath(t *testing.T) {
	dir := newTestSite(t)
	m := NewManager(nil)
	_, err := m.Serve(filepath.Join(dir, "index.html"))
	assert.Error(t, err)
}

func TestManagerStopIdempotent(t *testing.T) {
	m, h := startServer(t)
	m.Stop()
	m.Stop()
	assert.Nil(t, m.Active())
	h.Stop()
}
