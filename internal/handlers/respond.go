package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError maps the application error taxonomy to HTTP statuses.
// Validation and authorization failures happened before any write; store
// failures happened after the checks, with the atomic commit guaranteeing
// no partial state.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrUnauthorized):
		http.Error(w, "Insufficient permission", http.StatusForbidden)
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, "Record missing", http.StatusNotFound)
	case errors.Is(err, apperr.ErrDuplicateIdentifier):
		http.Error(w, "This tag is already assigned, use update instead", http.StatusConflict)
	case errors.Is(err, apperr.ErrDuplicateEmail):
		http.Error(w, "Email already in use", http.StatusConflict)
	case errors.Is(err, apperr.ErrSelfDelete):
		http.Error(w, "You cannot delete your own account", http.StatusPreconditionFailed)
	case errors.Is(err, apperr.ErrScanInProgress):
		http.Error(w, "A scan is already being processed", http.StatusConflict)
	case apperr.IsValidation(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperr.IsConfig(err):
		log.WithError(err).Error("backend configuration error")
		http.Error(w, "Backend configuration error: "+err.Error(), http.StatusServiceUnavailable)
	default:
		log.WithError(err).Error("request failed")
		http.Error(w, "Save failed", http.StatusInternalServerError)
	}
}
