package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/artifact"
)

// handleDownload serves GET /api/v1/dl/{digest}. The digest is
// validated by artifact.Store.Get; malformed or absent digests are
// indistinguishable 404s so this never leaks which is the case.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	digest := chi.URLParam(r, "digest")
	f, err := s.artifacts.Get(digest)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			writeNotFoundText(w)
			return
		}
		writeInternal(w, "reading artifact", err)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=""`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, f)
}
