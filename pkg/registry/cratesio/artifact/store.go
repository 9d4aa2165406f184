// Package artifact implements the content-addressed blob store for
// published crate archives: a flat directory keyed by the lowercase hex
// SHA-256 digest of the archive bytes.
package artifact

import (
	"io"
	"os"
	"path/filepath"
	"regexp"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Get when the digest is malformed or the
// blob does not exist.
var ErrNotFound = errors.New("artifact: not found")

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Store is a flat, content-addressed blob store rooted at Dir.
type Store struct {
	Dir string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &Store{Dir: dir}, nil
}

func (s *Store) path(digest string) string {
	return filepath.Join(s.Dir, digest+".crate")
}

// Put writes the archive bytes for digest, atomically via a temp file
// plus rename. Calling Put twice with the same (digest, bytes) is a
// no-op the second time.
func (s *Store) Put(digest string, data []byte) error {
	if !digestPattern.MatchString(digest) {
		return errors.Errorf("artifact: invalid digest %q", digest)
	}
	final := s.path(digest)
	if existing, err := os.ReadFile(final); err == nil {
		if string(existing) == string(data) {
			return nil
		}
	}
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "writing temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "closing temp file")
	}
	if err := os.Rename(tmp.Name(), final); err != nil {
		return errors.Wrap(err, "renaming into place")
	}
	return nil
}

// Get opens the archive bytes for digest for streaming. Returns
// ErrNotFound if digest is malformed (wrong length, or containing '.' or
// '/') or the blob does not exist -- both are folded into the same
// error so path-traversal attempts and missing blobs are indistinguishable
// to the caller.
func (s *Store) Get(digest string) (io.ReadCloser, error) {
	if !digestPattern.MatchString(digest) {
		return nil, ErrNotFound
	}
	f, err := os.Open(s.path(digest))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "opening artifact")
	}
	return f, nil
}
