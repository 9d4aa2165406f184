package bootstrap

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func TestRegistryInitializesRepoAndConfig(t *testing.T) {
	root := t.TempDir()
	repoRoot := filepath.Join(root, "index")
	storageRoot := filepath.Join(root, "storage")

	if err := Registry(repoRoot, storageRoot, "https://registry.example.com"); err != nil {
		t.Fatalf("Registry: %v", err)
	}

	if _, err := os.Stat(storageRoot); err != nil {
		t.Fatalf("storage root not created: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(repoRoot, "config.json"))
	if err != nil {
		t.Fatalf("reading config.json: %v", err)
	}
	var cfg registryConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshaling config.json: %v", err)
	}
	if cfg.API != "https://registry.example.com" {
		t.Fatalf("API = %q", cfg.API)
	}
	if cfg.DL != "https://registry.example.com/api/v1/dl/{sha256-checksum}" {
		t.Fatalf("DL = %q", cfg.DL)
	}

	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	head, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.Name() != plumbing.Main {
		t.Fatalf("HEAD = %s, want %s", head.Name(), plumbing.Main)
	}
}

func TestRegistryIsIdempotent(t *testing.T) {
	root := t.TempDir()
	repoRoot := filepath.Join(root, "index")
	storageRoot := filepath.Join(root, "storage")

	if err := Registry(repoRoot, storageRoot, "https://registry.example.com"); err != nil {
		t.Fatalf("first Registry: %v", err)
	}
	if err := Registry(repoRoot, storageRoot, "https://registry.example.com"); err != nil {
		t.Fatalf("second Registry: %v", err)
	}

	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		t.Fatalf("PlainOpen: %v", err)
	}
	ref, err := repo.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	commitIter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	count := 0
	if err := commitIter.ForEach(func(_ *object.Commit) error {
		count++
		return nil
	}); err != nil {
		t.Fatalf("iterating log: %v", err)
	}
	if count != 1 {
		t.Fatalf("commit count = %d, want 1 (idempotent re-run should not add a second commit)", count)
	}
}
