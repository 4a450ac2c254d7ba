package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/andesco/spa-edge/pkg/edgelib"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const entryHTML = "<!doctype html><html><body><div id=\"root\"></div></body></html>"

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	file := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
}

// newTestApp serves a fresh static root holding the entry document and
// relays the api prefix to upstream.
func newTestApp(t *testing.T, upstream string, modify ...func(*edgelib.Config)) (*fiber.App, *edgelib.Config) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "index.html", entryHTML)

	cfg := edgelib.DefaultConfig()
	cfg.StaticRoot = root
	cfg.Upstream = upstream
	cfg.LogRequests = false
	for _, m := range modify {
		m(cfg)
	}
	validated, err := cfg.Validated()
	require.NoError(t, err)

	return New(validated, Options{}), validated
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestRouterPrefixTakesPrecedence(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "from upstream")
	}))
	defer upstream.Close()

	app, cfg := newTestApp(t, upstream.Listener.Addr().String())
	writeFile(t, cfg.StaticRoot, "api/data.json", `{"static":true}`)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/data.json", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "from upstream", body)
	assert.Empty(t, resp.Header.Get("Content-Security-Policy"))
}

func TestRouterWithoutTrailingSlashIsStatic(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected upstream request %s", r.URL)
	}))
	defer upstream.Close()

	app, _ := newTestApp(t, upstream.Listener.Addr().String())

	for _, target := range []string{"/api", "/apiary", "/static/api/x"} {
		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode, target)
		assert.Equal(t, entryHTML, body, target)
	}
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t, edgelib.DefaultUpstream, func(c *edgelib.Config) {
		c.HealthPath = "/healthz"
	})

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","service":"spa-edge"}`, body)
}

func TestHealthDisabledFallsBackToEntry(t *testing.T) {
	app, _ := newTestApp(t, edgelib.DefaultUpstream)

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entryHTML, body)
}

func TestNewServesPrivateConfigCopy(t *testing.T) {
	app, cfg := newTestApp(t, edgelib.DefaultUpstream)
	writeFile(t, cfg.StaticRoot, "other.html", "other")

	cfg.EntryDocument = "other.html"
	cfg.APIPrefix = "/"
	cfg.SecurityHeaders[0].Value = "changed"
	cfg.CSP = nil
	cfg.MIMETypes[".html"] = "text/plain"

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, entryHTML, body)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "default-src 'self'")
}
