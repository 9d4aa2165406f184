package httpapi

import (
	"net/http"

	"github.com/jakibaki/registmily/pkg/registry/cratesio/store"
)

// sessionError is a 403-shaped failure: the text matches the wire
// contract in SPEC_FULL.md §7 verbatim.
type sessionError struct{ msg string }

func (e *sessionError) Error() string { return e.msg }

var errAuthMissing = &sessionError{msg: "authorization header is missing"}
var errAuthInvalid = &sessionError{msg: "session does not exist"}

// sessionFromRequest extracts the raw bearer token from the
// Authorization header (no scheme prefix) and resolves it to a
// session. Callers should respond 403 with err.Error() when err is a
// *sessionError, and a generic 500 otherwise.
func (s *Server) sessionFromRequest(r *http.Request) (*store.Session, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return nil, errAuthMissing
	}
	tx, err := s.store.Begin(r.Context())
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	session, err := tx.SessionByToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, errAuthInvalid
	}
	return session, nil
}

// writeSessionError renders a session lookup failure per SPEC_FULL.md
// §7: *sessionError values are a 403 with plain-text detail; anything
// else is an infrastructure failure.
func writeSessionError(w http.ResponseWriter, err error) {
	if se, ok := err.(*sessionError); ok {
		writeForbidden(w, se.msg)
		return
	}
	writeInternal(w, "resolving session", err)
}
