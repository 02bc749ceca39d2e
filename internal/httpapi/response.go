package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marmos91/ditto-upload/internal/apperror"
	"github.com/marmos91/ditto-upload/internal/logger"
)

// envelope is the standard response wrapper: a status string, a
// timestamp, and either Data or Error.
type envelope struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Status: "ok", Timestamp: time.Now().UTC(), Data: data})
}

func created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Status: "ok", Timestamp: time.Now().UTC(), Data: data})
}

// writeError maps err to its apperror-derived status and writes the
// error envelope. If err was never wrapped in *apperror.Error, it is
// treated as an opaque internal failure.
func writeError(w http.ResponseWriter, err error) {
	code := apperror.CodeOf(err)
	status := apperror.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "code", code.String())
	}
	writeJSON(w, status, envelope{Status: "error", Timestamp: time.Now().UTC(), Error: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Timestamp: time.Now().UTC(), Error: msg})
}

func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotImplemented, envelope{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     r.Method + " " + r.URL.Path + " is not implemented by the core",
	})
}
