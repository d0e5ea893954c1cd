// Package files implements path confinement (spec.md §9 "Path
// confinement") shared by the subprocess runner and the file tool
// provider: every user-supplied path is resolved against a base directory
// and rejected if it would escape it.
package files

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Resolver confines relative and absolute paths under Root.
type Resolver struct {
	Root string
}

// NewResolver constructs a Resolver rooted at root (defaulting to the
// current directory when empty).
func NewResolver(root string) *Resolver {
	if strings.TrimSpace(root) == "" {
		root = "."
	}
	return &Resolver{Root: root}
}

// Resolve returns the absolute path of p confined under the resolver's
// root, or an error if p would escape it (directly or via "..").
func (r *Resolver) Resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	rootAbs, err := filepath.Abs(r.Root)
	if err != nil {
		return "", fmt.Errorf("files: resolve root: %w", err)
	}

	var target string
	if filepath.IsAbs(p) {
		target = filepath.Clean(p)
	} else {
		target = filepath.Join(rootAbs, p)
	}

	rel, err := filepath.Rel(rootAbs, target)
	if err != nil {
		return "", fmt.Errorf("files: compute relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("files: path escapes workspace: %s", p)
	}

	return target, nil
}
