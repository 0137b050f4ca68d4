package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tagworks/servicedesk/internal/models"
)

// DirectoryService is the client/contact surface the handler needs.
type DirectoryService interface {
	SaveClient(ctx context.Context, orgID string, client models.Client, actor *models.OrgUser) (string, error)
	DeleteClient(ctx context.Context, orgID, clientID string, actor *models.OrgUser) error
	GetClient(ctx context.Context, orgID, clientID string, actor *models.OrgUser) (*models.Client, error)
	ListClients(ctx context.Context, orgID string, actor *models.OrgUser) ([]models.Client, error)
	ClientSnapshot(ctx context.Context, orgID, clientID, contactID string, actor *models.OrgUser) (name, phone, email string, err error)
	SaveContact(ctx context.Context, orgID, clientID string, contact models.Contact, actor *models.OrgUser) (string, error)
	DeleteContact(ctx context.Context, orgID, clientID, contactID string, actor *models.OrgUser) error
	ListContacts(ctx context.Context, orgID, clientID string, actor *models.OrgUser) ([]models.Contact, error)
}

// ClientHandler serves the client/contact directory endpoints.
type ClientHandler struct {
	service DirectoryService
}

// NewClientHandler creates a client directory handler.
func NewClientHandler(service DirectoryService) *ClientHandler {
	return &ClientHandler{service: service}
}

// Save handles POST /api/clients (insert or update by id).
func (h *ClientHandler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var client models.Client
	if err := json.NewDecoder(r.Body).Decode(&client); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	id, err := h.service.SaveClient(r.Context(), user.OrganizationID, client, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// Delete handles DELETE /api/clients/{id}.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteClient(r.Context(), user.OrganizationID, r.PathValue("id"), user); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Client deleted"})
}

// Get handles GET /api/clients/{id}.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	client, err := h.service.GetClient(r.Context(), user.OrganizationID, r.PathValue("id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, client)
}

// Snapshot handles GET /api/clients/{id}/snapshot. The optional contact_id
// query parameter picks a contact; the response carries the denormalized
// fields a ticket copies at assignment time.
func (h *ClientHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	name, phone, email, err := h.service.ClientSnapshot(r.Context(), user.OrganizationID,
		r.PathValue("id"), r.URL.Query().Get("contact_id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"client_name":  name,
		"client_phone": phone,
		"client_email": email,
	})
}

// List handles GET /api/clients.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	clients, err := h.service.ListClients(r.Context(), user.OrganizationID, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

// SaveContact handles POST /api/clients/{id}/contacts.
func (h *ClientHandler) SaveContact(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	var contact models.Contact
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	id, err := h.service.SaveContact(r.Context(), user.OrganizationID, r.PathValue("id"), contact, user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// DeleteContact handles DELETE /api/clients/{id}/contacts/{contactId}.
func (h *ClientHandler) DeleteContact(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	err := h.service.DeleteContact(r.Context(), user.OrganizationID,
		r.PathValue("id"), r.PathValue("contactId"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Contact deleted"})
}

// ListContacts handles GET /api/clients/{id}/contacts.
func (h *ClientHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	user, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	contacts, err := h.service.ListContacts(r.Context(), user.OrganizationID, r.PathValue("id"), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}
