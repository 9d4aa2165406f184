// Package bootstrap creates a fresh index repository and artifact
// store tree on first run, and is a no-op (idempotent) against an
// already-initialized one.
package bootstrap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pkg/errors"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
)

// registryConfig is the config.json written to the index repository
// root, in the shape crates.io-compatible clients expect.
type registryConfig struct {
	DL  string `json:"dl"`
	API string `json:"api"`
}

// Registry initializes repoRoot as a git repository on branch "main"
// containing config.json (derived from apiBaseURL), and creates
// storageRoot. If repoRoot is already an initialized repository with a
// config.json, Registry does nothing.
func Registry(repoRoot, storageRoot, apiBaseURL string) error {
	if err := os.MkdirAll(storageRoot, 0o755); err != nil {
		return errors.Wrap(err, "creating storage root")
	}
	if err := os.MkdirAll(repoRoot, 0o755); err != nil {
		return errors.Wrap(err, "creating repo root")
	}
	configPath := filepath.Join(repoRoot, "config.json")
	if _, err := os.Stat(configPath); err == nil {
		return nil // already initialized
	}
	repo, err := git.PlainInit(repoRoot, false)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryAlreadyExists) {
			repo, err = git.PlainOpen(repoRoot)
		}
		if err != nil {
			return errors.Wrap(err, "initializing index repository")
		}
	}
	head, err := repo.Head()
	if err != nil || head.Name() != plumbing.Main {
		if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.Main)); err != nil {
			return errors.Wrap(err, "setting main as default branch")
		}
	}
	cfg := registryConfig{
		DL:  fmt.Sprintf("%s/api/v1/dl/{sha256-checksum}", apiBaseURL),
		API: apiBaseURL,
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "serializing config.json")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "opening worktree")
	}
	f, err := wt.Filesystem.Create("config.json")
	if err != nil {
		return errors.Wrap(err, "writing config.json")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errors.Wrap(err, "writing config.json")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "writing config.json")
	}
	if _, err := wt.Add("config.json"); err != nil {
		return errors.Wrap(err, "staging config.json")
	}
	sig := object.Signature{Name: index.AuthorName, Email: index.AuthorEmail, When: time.Now()}
	if _, err := wt.Commit("Initialized registry", &git.CommitOptions{Author: &sig, Committer: &sig}); err != nil {
		return errors.Wrap(err, "committing initial registry state")
	}
	return nil
}
