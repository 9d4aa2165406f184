// Package index owns the on-disk, git-committed crates.io-style index:
// one newline-delimited JSON file per crate, sharded by name into a
// directory tree, plus the git plumbing that commits and pushes changes
// to that tree.
package index

import (
	"path/filepath"
	"strings"
)

// EntryPath computes the sharded index path for a crate name, relative to
// the index repository root. It panics if name is empty or contains a
// path separator or '.', since those would escape the sharded tree --
// this is the last line of defense against path traversal and must never
// be reachable once callers have validated the crate name upstream.
func EntryPath(name string) string {
	name = strings.ToLower(name)
	if name == "" {
		panic("index: empty crate name")
	}
	if strings.ContainsAny(name, "./\\") {
		panic("index: invalid crate name: " + name)
	}
	switch len(name) {
	case 1:
		return filepath.Join("1", name)
	case 2:
		return filepath.Join("2", name)
	case 3:
		return filepath.Join("3", name[:1], name)
	default:
		return filepath.Join(name[:2], name[2:4], name)
	}
}
