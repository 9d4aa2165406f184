package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/publish"
)

// maxPublishBody caps the publish body at ~20MB, per SPEC_FULL.md §4.H.
const maxPublishBody = 20 << 20

type publishResponse struct {
	Warnings publishWarnings `json:"warnings"`
}

type publishWarnings struct {
	InvalidCategories []string `json:"invalid_categories"`
	InvalidBadges     []string `json:"invalid_badges"`
	Other             []string `json:"other"`
}

// handlePublish implements PUT /api/v1/crates/new: component H framing,
// component G/F ownership enforcement, then dispatch to the mutation
// worker (components D/E) via component C's git index writer.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessionFromRequest(r)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxPublishBody)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorJSON(w, "request body too large or unreadable")
		return
	}

	env, err := publish.Parse(body)
	if err != nil {
		writeErrorJSON(w, err.Error())
		return
	}

	name := strings.ToLower(env.Manifest.Name)
	if name == "" || strings.ContainsAny(name, "./\\") {
		writeErrorJSON(w, "invalid crate name")
		return
	}

	sum := sha256.Sum256(env.Archive)
	cksum := hex.EncodeToString(sum[:])
	rec := env.Manifest.ToRecord(cksum)
	rec.Name = name

	ctx := r.Context()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		writeInternal(w, "beginning publish transaction", err)
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
		if err := tx.CreateCrate(ctx, name); err != nil {
			writeInternal(w, "creating crate", err)
			return
		}
		if err := tx.CreateOwner(ctx, name, session.Ident); err != nil {
			writeInternal(w, "creating initial owner", err)
			return
		}
	} else {
		isOwner, err := tx.OwnerExists(ctx, name, session.Ident)
		if err != nil {
			writeInternal(w, "checking ownership", err)
			return
		}
		if !isOwner {
			writeErrorJSON(w, "User is not a crate owner")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		writeInternal(w, "committing publish transaction", err)
		return
	}
	committed = true

	resp, err := s.worker.Do(ctx, index.PublishOp{Record: rec, Archive: env.Archive})
	if err != nil {
		writeInternal(w, "dispatching publish to worker", err)
		return
	}
	if resp.Err != nil {
		writeErrorJSON(w, resp.Err.Error())
		return
	}

	writeJSON(w, http.StatusOK, publishResponse{Warnings: publishWarnings{
		InvalidCategories: []string{},
		InvalidBadges:     []string{},
		Other:             []string{},
	}})
}
