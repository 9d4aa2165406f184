package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/jakibaki/registmily/internal/identity"
)

// handleMe begins the identity-provider handshake: redirect the client
// to the provider's authorization endpoint. The callback lands on
// handleMeCallback.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	state, err := randomState()
	if err != nil {
		writeInternal(w, "generating oauth state", err)
		return
	}
	http.Redirect(w, r, s.provider.AuthCodeURL(state), http.StatusFound)
}

// handleMeCallback completes the handshake: exchange the authorization
// code for a subject identifier, map it to an internal ident, create
// the user if this is their first token issuance, mint a session, and
// return the bearer token as plain text.
func (s *Server) handleMeCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		writeErrorJSON(w, "missing authorization code")
		return
	}
	subject, err := s.provider.Exchange(r.Context(), code)
	if err != nil {
		writeInternal(w, "completing identity handshake", err)
		return
	}
	ident := identity.Ident(subject)

	ctx := r.Context()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		writeInternal(w, "beginning session transaction", err)
		return
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := tx.CreateUser(ctx, ident); err != nil {
		writeInternal(w, "creating user", err)
		return
	}
	session, err := tx.CreateSession(ctx, ident)
	if err != nil {
		writeInternal(w, "creating session", err)
		return
	}
	if err := tx.Commit(); err != nil {
		writeInternal(w, "committing session transaction", err)
		return
	}
	committed = true

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(session.Token))
}

func randomState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
