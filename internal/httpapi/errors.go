package httpapi

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/pkg/errors"
)

// errorEnvelope is the shape of every logical-failure response:
// {"errors":[{"detail":"..."}]}, returned with HTTP 200 to match
// client expectations (see the open question in SPEC_FULL.md §9 on
// this being a deliberately preserved, non-obvious wire contract).
type errorEnvelope struct {
	Errors []errorDetail `json:"errors"`
}

type errorDetail struct {
	Detail string `json:"detail"`
}

func writeErrorJSON(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(errorEnvelope{Errors: []errorDetail{{Detail: detail}}})
}

func writeForbidden(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(msg))
}

func writeNotFoundText(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("File not found!"))
}

// writeInternal logs the full error and returns a generic 500 --
// infrastructure failures never leak internals to the client.
func writeInternal(w http.ResponseWriter, context string, err error) {
	log.Println(errors.Wrap(err, context))
	http.Error(w, "Database Error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
