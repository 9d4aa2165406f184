package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
)

type okResponse struct {
	Ok bool `json:"ok"`
}

func (s *Server) handleYank(w http.ResponseWriter, r *http.Request) {
	s.yank(w, r, true)
}

func (s *Server) handleUnyank(w http.ResponseWriter, r *http.Request) {
	s.yank(w, r, false)
}

// yank implements both DELETE .../yank and PUT .../unyank: they differ
// only in the desired value of the yanked flag.
func (s *Server) yank(w http.ResponseWriter, r *http.Request, desired bool) {
	session, err := s.sessionFromRequest(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	name := strings.ToLower(chi.URLParam(r, "name"))
	vers := chi.URLParam(r, "vers")

	ctx := r.Context()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		writeInternal(w, "beginning yank transaction", err)
		return
	}
	defer tx.Rollback()

	exists, err := tx.CrateExists(ctx, name)
	if err != nil {
		writeInternal(w, "checking crate existence", err)
		return
	}
	if !exists {
		writeErrorJSON(w, "crate not found")
		return
	}
	isOwner, err := tx.OwnerExists(ctx, name, session.Ident)
	if err != nil {
		writeInternal(w, "checking ownership", err)
		return
	}
	if !isOwner {
		writeErrorJSON(w, "User is not a crate owner")
		return
	}

	resp, err := s.worker.Do(ctx, index.YankOp{Name: name, Vers: vers, Desired: desired})
	if err != nil {
		writeInternal(w, "dispatching yank to worker", err)
		return
	}
	if resp.Err != nil {
		if resp.Err == index.ErrCrateNotFound {
			writeErrorJSON(w, "crate not found")
			return
		}
		writeErrorJSON(w, resp.Err.Error())
		return
	}

	writeJSON(w, http.StatusOK, okResponse{Ok: true})
}
