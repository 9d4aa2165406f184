package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/pkg/errors"
)

// ErrCrateNotFound is returned by Yank, AddOwner, and DelOwner when the
// named crate has no index file yet.
var ErrCrateNotFound = errors.New("index: crate not found")

// ArtifactStore is the subset of artifact.Store that Publish needs.
type ArtifactStore interface {
	Put(digest string, data []byte) error
}

// AuthorName and AuthorEmail are the fixed git identity every index
// commit is signed with. The original implementation this registry is
// modeled on signs every commit this way rather than attributing it to
// the publishing user, and this repository preserves that convention.
const (
	AuthorName  = "registmily"
	AuthorEmail = "registmily@example.com"
)

// Writer owns a working copy of the index git repository at Root and
// performs the per-crate file rewrites plus commits described by the
// publish/yank/owner-mutation operations. A Writer is not safe for
// concurrent use -- callers must serialize access to it (see
// pkg/registry/cratesio/index.Worker).
//
// File reads and writes go through the worktree's billy.Filesystem
// (the same abstraction the teacher's IndexManager uses to address
// repository content) rather than the os package directly, so every
// path this Writer touches stays relative to, and bounded by, the
// worktree go-git itself is managing.
type Writer struct {
	Root string
	repo *git.Repository
	fs   billy.Filesystem
}

// OpenWriter opens an already-initialized index repository rooted at root.
func OpenWriter(root string) (*Writer, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, errors.Wrap(err, "opening index repository")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, errors.Wrap(err, "opening worktree")
	}
	return &Writer{Root: root, repo: repo, fs: wt.Filesystem}, nil
}

func (w *Writer) entryPath(name string) string {
	return EntryPath(name)
}

func readRecords(fs billy.Filesystem, path string) ([]Record, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading index file")
	}
	defer f.Close()
	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, errors.Wrap(err, "parsing index record")
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning index file")
	}
	return records, nil
}

func writeRecords(fs billy.Filesystem, path string, records []Record) error {
	var buf bytes.Buffer
	for i, rec := range records {
		if i > 0 {
			buf.WriteByte('\n')
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "serializing index record")
		}
		buf.Write(b)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating index directory")
	}
	return writeFile(fs, path, buf.Bytes())
}

func writeFile(fs billy.Filesystem, path string, data []byte) error {
	_ = fs.Remove(path) // billy has no truncating Create contract across implementations; start clean
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "writing index file")
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return errors.Wrap(err, "writing index file")
	}
	return nil
}

// Publish rewrites the crate's index file with rec in place of any
// prior record for the same version, persists the archive bytes to
// store, and commits the result with message "added crate".
func (w *Writer) Publish(rec Record, archive []byte, store ArtifactStore) error {
	if rec.Deps == nil {
		rec.Deps = []Dependency{}
	}
	path := w.entryPath(rec.Name)
	records, err := readRecords(w.fs, path)
	if err != nil {
		return err
	}
	filtered := records[:0]
	for _, existing := range records {
		if existing.Vers != rec.Vers {
			filtered = append(filtered, existing)
		}
	}
	filtered = append(filtered, rec)
	if err := writeRecords(w.fs, path, filtered); err != nil {
		return err
	}
	if err := store.Put(rec.Cksum, archive); err != nil {
		return errors.Wrap(err, "storing artifact")
	}
	return w.commit([]string{path}, "added crate")
}

// Yank sets the yanked flag for (name, vers) to desired. If the record
// already has that value, the file is rewritten unchanged and no commit
// is made. Returns ErrCrateNotFound if the crate or version is unknown.
func (w *Writer) Yank(name, vers string, desired bool) error {
	path := w.entryPath(name)
	records, err := readRecords(w.fs, path)
	if err != nil {
		return err
	}
	if records == nil {
		return ErrCrateNotFound
	}
	var found, changed bool
	for i := range records {
		if records[i].Vers == vers {
			found = true
			changed = records[i].Yanked != desired
			records[i].Yanked = desired
		}
	}
	if !found {
		return ErrCrateNotFound
	}
	if err := writeRecords(w.fs, path, records); err != nil {
		return err
	}
	if !changed {
		return nil
	}
	message := "unyanked crate"
	if desired {
		message = "yanked crate"
	}
	return w.commit([]string{path}, message)
}

func ownersPath(indexPath string) string {
	return indexPath + ".owners"
}

func readOwners(fs billy.Filesystem, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading owners file")
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "reading owners file")
	}
	var idents []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			idents = append(idents, line)
		}
	}
	return idents, nil
}

func writeOwners(fs billy.Filesystem, path string, idents []string) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating index directory")
	}
	return writeFile(fs, path, []byte(strings.Join(idents, "\n")))
}

// AddOwner adds ident to the advisory owners file sibling to the crate's
// index file. The relational store remains the authoritative owner
// list; this file exists only to mirror it into the index repository.
func (w *Writer) AddOwner(name, ident string) error {
	path := ownersPath(w.entryPath(name))
	idents, err := readOwners(w.fs, path)
	if err != nil {
		return err
	}
	for _, existing := range idents {
		if existing == ident {
			return nil
		}
	}
	idents = append(idents, ident)
	if err := writeOwners(w.fs, path, idents); err != nil {
		return err
	}
	return w.commit([]string{path}, "added owner")
}

// DelOwner removes ident from the advisory owners file.
func (w *Writer) DelOwner(name, ident string) error {
	path := ownersPath(w.entryPath(name))
	idents, err := readOwners(w.fs, path)
	if err != nil {
		return err
	}
	var kept []string
	var removed bool
	for _, existing := range idents {
		if existing == ident {
			removed = true
			continue
		}
		kept = append(kept, existing)
	}
	if !removed {
		return nil
	}
	if err := writeOwners(w.fs, path, kept); err != nil {
		return err
	}
	return w.commit([]string{path}, "removed owner")
}

// commit stages relPaths, commits with the fixed registmily identity,
// and pushes to origin if a remote is configured. A push failure is
// logged as a warning and does not fail the commit -- the local commit
// has already landed by the time a push would be attempted.
func (w *Writer) commit(relPaths []string, message string) error {
	wt, err := w.repo.Worktree()
	if err != nil {
		return errors.Wrap(err, "opening worktree")
	}
	for _, p := range relPaths {
		if _, err := wt.Add(p); err != nil {
			return errors.Wrapf(err, "staging %s", p)
		}
	}
	sig := object.Signature{Name: AuthorName, Email: AuthorEmail, When: time.Now()}
	_, err = wt.Commit(message, &git.CommitOptions{Author: &sig, Committer: &sig})
	if err != nil {
		return errors.Wrap(err, "committing index change")
	}
	if err := w.push(); err != nil {
		log.Printf("index: push to origin failed (commit is still durable): %v", err)
	}
	return nil
}

func (w *Writer) push() error {
	if _, err := w.repo.Remote("origin"); err != nil {
		return nil // no remote configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return errors.Wrap(err, "resolving home directory")
	}
	auth, err := ssh.NewPublicKeysFromFile("git", filepath.Join(home, ".ssh", "id_rsa"), "")
	if err != nil {
		return errors.Wrap(err, "loading ssh key")
	}
	err = w.repo.Push(&git.PushOptions{
		RemoteName: "origin",
		Auth:       auth,
		RefSpecs:   []config.RefSpec{"refs/heads/main:refs/heads/main"},
	})
	if err == git.NoErrAlreadyUpToDate {
		return nil
	}
	return err
}
