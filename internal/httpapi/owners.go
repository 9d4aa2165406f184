package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
)

// maxOwnersPerRequest bounds how many identifiers an owner add/remove
// request may carry, per SPEC_FULL.md §6.
const maxOwnersPerRequest = 255

type ownersRequest struct {
	Users []string `json:"users"`
}

type ownersResponse struct {
	Users []ownerUser `json:"users"`
}

type ownerUser struct {
	ID    int     `json:"id"`
	Login string  `json:"login"`
	Name  *string `json:"name"`
}

type ownersMutationResponse struct {
	Ok  bool   `json:"ok"`
	Msg string `json:"msg"`
}

func (s *Server) handleListOwners(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "name"))
	ctx := r.Context()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		writeInternal(w, "beginning owners list transaction", err)
		return
	}
	defer tx.Rollback()
	idents, err := tx.ListOwners(ctx, name)
	if err != nil {
		writeInternal(w, "listing owners", err)
		return
	}
	// Owner "id" is the enumeration index, not a stable identifier --
	// clients must treat it as opaque (see SPEC_FULL.md §9).
	users := make([]ownerUser, len(idents))
	for i, ident := range idents {
		users[i] = ownerUser{ID: i + 1, Login: ident, Name: nil}
	}
	writeJSON(w, http.StatusOK, ownersResponse{Users: users})
}

func (s *Server) handleAddOwners(w http.ResponseWriter, r *http.Request) {
	s.mutateOwners(w, r, true)
}

func (s *Server) handleRemoveOwners(w http.ResponseWriter, r *http.Request) {
	s.mutateOwners(w, r, false)
}

func (s *Server) mutateOwners(w http.ResponseWriter, r *http.Request, add bool) {
	session, err := s.sessionFromRequest(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	name := strings.ToLower(chi.URLParam(r, "name"))

	var req ownersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, "invalid request body")
		return
	}
	if len(req.Users) == 0 || len(req.Users) > maxOwnersPerRequest {
		writeErrorJSON(w, "invalid number of users")
		return
	}

	ctx := r.Context()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		writeInternal(w, "beginning owners mutation transaction", err)
		return
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

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

	for _, ident := range req.Users {
		if add {
			if err := tx.CreateUser(ctx, ident); err != nil {
				writeInternal(w, "creating referenced user", err)
				return
			}
			if err := tx.CreateOwner(ctx, name, ident); err != nil {
				writeInternal(w, "adding owner", err)
				return
			}
		} else {
			if err := tx.DeleteOwner(ctx, name, ident); err != nil {
				writeInternal(w, "removing owner", err)
				return
			}
		}
	}

	if err := tx.Commit(); err != nil {
		writeInternal(w, "committing owners mutation transaction", err)
		return
	}
	committed = true

	for _, ident := range req.Users {
		var op index.Operation
		if add {
			op = index.AddOwnerOp{Name: name, Ident: ident}
		} else {
			op = index.DelOwnerOp{Name: name, Ident: ident}
		}
		if _, err := s.worker.Do(ctx, op); err != nil {
			writeInternal(w, "dispatching owner mutation to worker", err)
			return
		}
	}

	msg := "added owners successfully"
	if !add {
		msg = "deleted owners successfully"
	}
	writeJSON(w, http.StatusOK, ownersMutationResponse{Ok: true, Msg: msg})
}
