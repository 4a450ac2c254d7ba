package edgelib

import (
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Resolve maps a request path to the file served for it. Paths that do not
// name an existing regular file under the static root, including every
// traversal attempt, resolve to the entry document.
func (c *Config) Resolve(requestPath string) string {
	entry := filepath.Join(c.StaticRoot, c.EntryDocument)

	if i := strings.IndexByte(requestPath, '?'); i >= 0 {
		requestPath = requestPath[:i]
	}
	if requestPath == "/" || requestPath == "" {
		return entry
	}
	if unescaped, err := url.PathUnescape(requestPath); err == nil {
		requestPath = unescaped
	}

	// Clean on a rooted path drops every leading "..".
	target := filepath.Join(c.StaticRoot, filepath.FromSlash(path.Clean("/"+requestPath)))

	resolved, err := filepath.EvalSymlinks(target)
	if err != nil || !within(c.StaticRoot, resolved) {
		return entry
	}
	info, err := os.Stat(resolved)
	if err != nil || info.IsDir() {
		return entry
	}
	return target
}

// ReadAsset reads a resolved file, typing the failure as NotFound or FilesystemError.
func ReadAsset(file string) ([]byte, error) {
	content, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound.Wrap(err, "read '%s'", file)
		}
		return nil, FilesystemError.Wrap(err, "read '%s'", file)
	}
	return content, nil
}

func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
