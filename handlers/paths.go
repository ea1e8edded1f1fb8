// Package handlers implements the closed set of built-in handlers the
// dispatcher chooses from: static files, directory listings, uploads,
// deletes, redirects and CGI.
package handlers

import (
	"path/filepath"
	"strings"
)

// ResolvePath joins root and relative the way a file server must: reject
// anything that would escape root via ".." segments before the join ever
// touches the filesystem, rather than trusting filepath.Clean alone.
func ResolvePath(root, relative string) (string, bool) {
	relative = strings.TrimPrefix(relative, "/")
	for _, seg := range strings.Split(relative, "/") {
		if seg == ".." {
			return "", false
		}
	}
	joined := filepath.Join(root, relative)
	if !strings.HasPrefix(joined, filepath.Clean(root)+string(filepath.Separator)) && joined != filepath.Clean(root) {
		return "", false
	}
	return joined, true
}
