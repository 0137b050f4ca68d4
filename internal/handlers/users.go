package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tagworks/servicedesk/internal/models"
	"github.com/tagworks/servicedesk/internal/users"
)

// UserService is the user directory surface the handler needs. Every
// operation re-verifies the acting user's stored permissions server-side;
// the handler only supplies the actor's identity.
type UserService interface {
	Create(ctx context.Context, actorID string, req users.CreateRequest) (string, error)
	UpdatePermissions(ctx context.Context, actorID, userID string, perms models.PermissionSet) error
	Delete(ctx context.Context, actorID, userID string) error
	List(ctx context.Context, actorID string) ([]models.OrgUser, error)
}

// UserHandler serves the user administration endpoints.
type UserHandler struct {
	service UserService
}

// NewUserHandler creates a user admin handler.
func NewUserHandler(service UserService) *UserHandler {
	return &UserHandler{service: service}
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req users.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	id, err := h.service.Create(r.Context(), actor.ID.Hex(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// UpdatePermissions handles PUT /api/users/{id}/permissions.
func (h *UserHandler) UpdatePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var perms models.PermissionSet
	if err := json.NewDecoder(r.Body).Decode(&perms); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := h.service.UpdatePermissions(r.Context(), actor.ID.Hex(), r.PathValue("id"), perms); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Permissions updated"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), actor.ID.Hex(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted"})
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	orgUsers, err := h.service.List(r.Context(), actor.ID.Hex())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgUsers)
}
