package edgelib

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	file := filepath.Join(root, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
}

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "index.html", "<html>entry</html>")
	writeFile(t, root, "app.js", "console.log('app')")
	writeFile(t, root, "assets/logo.PNG", "png")
	writeFile(t, root, "my file.txt", "spaced")

	cfg := DefaultConfig()
	cfg.StaticRoot = root
	validated, err := cfg.Validated()
	require.NoError(t, err)
	return validated
}

func TestResolve(t *testing.T) {
	cfg := newTestConfig(t)
	entry := filepath.Join(cfg.StaticRoot, "index.html")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"root", "/", entry},
		{"empty", "", entry},
		{"file", "/app.js", filepath.Join(cfg.StaticRoot, "app.js")},
		{"query stripped", "/app.js?v=3", filepath.Join(cfg.StaticRoot, "app.js")},
		{"nested", "/assets/logo.PNG", filepath.Join(cfg.StaticRoot, "assets", "logo.PNG")},
		{"escaped", "/my%20file.txt", filepath.Join(cfg.StaticRoot, "my file.txt")},
		{"app route", "/dashboard/settings", entry},
		{"directory", "/assets", entry},
		{"directory slash", "/assets/", entry},
		{"traversal", "/../../etc/passwd", entry},
		{"encoded traversal", "/%2e%2e/%2e%2e/etc/passwd", entry},
		{"root query", "/?next=/x", entry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.Resolve(tt.path))
		})
	}
}

func TestResolveSymlinkOutsideRoot(t *testing.T) {
	cfg := newTestConfig(t)
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "secret")

	if err := os.Symlink(filepath.Join(outside, "secret.txt"), filepath.Join(cfg.StaticRoot, "leak.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	assert.Equal(t, filepath.Join(cfg.StaticRoot, "index.html"), cfg.Resolve("/leak.txt"))
}

func TestReadAsset(t *testing.T) {
	cfg := newTestConfig(t)

	content, err := ReadAsset(filepath.Join(cfg.StaticRoot, "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log('app')", string(content))

	_, err = ReadAsset(filepath.Join(cfg.StaticRoot, "missing.html"))
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, NotFound))
	assert.Equal(t, 404, StatusOf(err))

	_, err = ReadAsset(filepath.Join(cfg.StaticRoot, "assets"))
	require.Error(t, err)
	assert.True(t, errorx.IsOfType(err, FilesystemError))
	assert.Equal(t, 500, StatusOf(err))
	if runtime.GOOS == "linux" {
		assert.Equal(t, "EISDIR", ErrorCode(err))
	}
}
