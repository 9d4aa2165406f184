// Package httpapi is the HTTP surface (component J): thin handlers
// mapping routes to the publish-framing, session, and relational-state
// components, backed by the request bridge into the single mutation
// worker.
package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/jakibaki/registmily/internal/identity"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/artifact"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/index"
	"github.com/jakibaki/registmily/pkg/registry/cratesio/store"
)

// Server holds the dependencies every handler needs: the relational
// store, the artifact store (read path only -- writes go through the
// worker), the request bridge into the mutation worker, and the
// identity provider client for /me.
type Server struct {
	store     *store.Store
	artifacts *artifact.Store
	worker    *index.Worker
	provider  *identity.Provider
}

// New constructs a Server.
func New(st *store.Store, artifacts *artifact.Store, worker *index.Worker, provider *identity.Provider) *Server {
	return &Server{store: st, artifacts: artifacts, worker: worker, provider: provider}
}

// Router builds the full route table described in SPEC_FULL.md §6.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Put("/crates/new", s.handlePublish)
		r.Delete("/crates/{name}/{vers}/yank", s.handleYank)
		r.Put("/crates/{name}/{vers}/unyank", s.handleUnyank)
		r.Get("/crates/{name}/owners", s.handleListOwners)
		r.Put("/crates/{name}/owners", s.handleAddOwners)
		r.Delete("/crates/{name}/owners", s.handleRemoveOwners)
		r.Get("/dl/{digest}", s.handleDownload)
	})

	r.Get("/me", s.handleMe)
	r.Get("/me/callback", s.handleMeCallback)

	return r
}

// requestIDMiddleware assigns every inbound request a fresh request id,
// surfaced both in the response header and the access log, so an
// operator can correlate a client-reported failure with worker and
// database logging emitted while handling it.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("request_id=%s %s %s %s", id, r.Method, r.URL.Path, time.Since(start))
	})
}
