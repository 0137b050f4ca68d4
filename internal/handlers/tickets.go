package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/middleware"
	"github.com/tagworks/servicedesk/internal/models"
	"github.com/tagworks/servicedesk/internal/resolver"
)

// TicketService is the lifecycle surface the handler needs.
type TicketService interface {
	Create(ctx context.Context, orgID string, draft models.ServiceItem, noteText string, actor *models.OrgUser) (string, error)
	Update(ctx context.Context, orgID, ticketID string, proposed models.ServiceItem, noteText string, actor *models.OrgUser) error
	QuickUpdate(ctx context.Context, orgID, ticketID string, status models.ServiceStatus, noteText string, actor *models.OrgUser) error
	Delete(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) error
	Get(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) (*models.ServiceItem, error)
	List(ctx context.Context, orgID string, actor *models.OrgUser) ([]models.ServiceItem, error)
	History(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) ([]models.HistoryEntry, error)
	OrgHistory(ctx context.Context, orgID string, limit int64, actor *models.OrgUser) ([]models.HistoryEntry, error)
}

// TagResolver resolves a scanned identifier.
type TagResolver interface {
	Resolve(ctx context.Context, orgID, sessionID, identifier string) (*resolver.Resolution, error)
}

// TipProvider fetches diagnostic suggestions for a ticket.
type TipProvider interface {
	DiagnosticTips(ctx context.Context, item *models.ServiceItem) (string, error)
}

// TicketHandler serves the ticket lifecycle endpoints.
type TicketHandler struct {
	service  TicketService
	resolver TagResolver
	tips     TipProvider
}

// NewTicketHandler creates a ticket handler.
func NewTicketHandler(service TicketService, tagResolver TagResolver, tips TipProvider) *TicketHandler {
	return &TicketHandler{service: service, resolver: tagResolver, tips: tips}
}

func actorFromRequest(w http.ResponseWriter, r *http.Request) (*models.OrgUser, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// TicketRequest carries a ticket payload plus an optional note. Notes only
// ever travel alongside a save; they are appended, never edited.
type TicketRequest struct {
	Ticket models.ServiceItem `json:"ticket"`
	Note   string             `json:"note"`
}

// Create handles POST /api/tickets.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req TicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	id, err := h.service.Create(r.Context(), user.OrganizationID, req.Ticket, req.Note, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update handles PUT /api/tickets/{id}.
func (h *TicketHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req TicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	err := h.service.Update(r.Context(), user.OrganizationID, r.PathValue("id"), req.Ticket, req.Note, user)
	if errors.Is(err, apperr.ErrNoChanges) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No changes"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ticket updated"})
}

// QuickUpdateRequest is the scan-driven fast path payload.
type QuickUpdateRequest struct {
	Status models.ServiceStatus `json:"status"`
	Note   string               `json:"note"`
}

// QuickUpdate handles POST /api/tickets/{id}/quick-update.
func (h *TicketHandler) QuickUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var req QuickUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	err := h.service.QuickUpdate(r.Context(), user.OrganizationID, r.PathValue("id"), req.Status, req.Note, user)
	if errors.Is(err, apperr.ErrNoChanges) {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No changes"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ticket updated"})
}

// Delete handles DELETE /api/tickets/{id}.
func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), user.OrganizationID, r.PathValue("id"), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Ticket deleted"})
}

// Get handles GET /api/tickets/{id}.
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), user.OrganizationID, r.PathValue("id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// List handles GET /api/tickets.
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	items, err := h.service.List(r.Context(), user.OrganizationID, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// History handles GET /api/tickets/{id}/history.
func (h *TicketHandler) History(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	entries, err := h.service.History(r.Context(), user.OrganizationID, r.PathValue("id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// OrgHistory handles GET /api/history.
func (h *TicketHandler) OrgHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	limit := int64(25)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := h.service.OrgHistory(r.Context(), user.OrganizationID, limit, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ResolveRequest carries a scanned identifier and its device session.
type ResolveRequest struct {
	SessionID  string `json:"session_id"`
	Identifier string `json:"identifier"`
}

// Resolve handles POST /api/scan/resolve: the HTTP-side entry to the
// identity resolver, used by readers that are not on the MQTT gateway.
func (h *TicketHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if !user.Can(models.PermScan) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	// Scans serialize per session; without a session id every caller would
	// share one slot and collide.
	if strings.TrimSpace(req.SessionID) == "" {
		writeError(w, apperr.Validation("session_id", "session id is required"))
		return
	}

	resolution, err := h.resolver.Resolve(r.Context(), user.OrganizationID, req.SessionID, req.Identifier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resolution)
}

// Tips handles GET /api/tickets/{id}/tips. Generator failures are soft: the
// client gets a "tips unavailable" message, never a fatal error.
func (h *TicketHandler) Tips(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	item, err := h.service.Get(r.Context(), user.OrganizationID, r.PathValue("id"), user)
	if err != nil {
		writeError(w, err)
		return
	}

	text, err := h.tips.DiagnosticTips(r.Context(), item)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Diagnostic tips are unavailable right now",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tips": text})
}
