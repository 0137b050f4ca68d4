// Package directory manages clients and, for company clients, their
// contacts. Tickets copy a snapshot of client data at assignment time and
// never live-join the directory.
package directory

import (
	"context"
	"strings"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/models"
)

// Service is the client/contact directory.
type Service struct {
	store db.ClientStore
}

// NewService creates a directory service.
func NewService(store db.ClientStore) *Service {
	return &Service{store: store}
}

// SaveClient inserts or updates a client. Individual clients need a name,
// company clients a company name.
func (s *Service) SaveClient(ctx context.Context, orgID string, client models.Client, actor *models.OrgUser) (string, error) {
	if !actor.Can(models.PermViewClients) {
		return "", apperr.ErrUnauthorized
	}
	if !models.IsValidClientType(client.Type) {
		return "", apperr.Validation("type", "unknown client type "+string(client.Type))
	}
	switch client.Type {
	case models.ClientIndividual:
		if strings.TrimSpace(client.Name) == "" {
			return "", apperr.Validation("name", "name is required for individual clients")
		}
	case models.ClientCompany:
		if strings.TrimSpace(client.CompanyName) == "" {
			return "", apperr.Validation("company_name", "company name is required for company clients")
		}
	}

	client.OrganizationID = orgID
	if client.ID.IsZero() {
		return s.store.InsertClient(ctx, client)
	}
	return client.ID.Hex(), s.store.UpdateClient(ctx, client)
}

// DeleteClient removes a client and its contacts. Tickets referencing the
// client keep their denormalized snapshot and soft reference.
func (s *Service) DeleteClient(ctx context.Context, orgID, clientID string, actor *models.OrgUser) error {
	if !actor.Can(models.PermViewClients) {
		return apperr.ErrUnauthorized
	}
	return s.store.DeleteClient(ctx, orgID, clientID)
}

// GetClient returns one client.
func (s *Service) GetClient(ctx context.Context, orgID, clientID string, actor *models.OrgUser) (*models.Client, error) {
	if !actor.Can(models.PermViewClients) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.FindClientByID(ctx, orgID, clientID)
}

// ListClients returns the organization's clients.
func (s *Service) ListClients(ctx context.Context, orgID string, actor *models.OrgUser) ([]models.Client, error) {
	if !actor.Can(models.PermViewClients) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.ListClients(ctx, orgID)
}

// ClientSnapshot resolves the denormalized client fields a ticket copies
// when the client (and optionally one of its contacts) is assigned. The
// contact, when given, must belong to the client.
func (s *Service) ClientSnapshot(ctx context.Context, orgID, clientID, contactID string, actor *models.OrgUser) (name, phone, email string, err error) {
	if !actor.Can(models.PermViewClients) {
		return "", "", "", apperr.ErrUnauthorized
	}
	client, err := s.store.FindClientByID(ctx, orgID, clientID)
	if err != nil {
		return "", "", "", err
	}
	var contact *models.Contact
	if contactID != "" {
		contact, err = s.store.FindContactByID(ctx, orgID, contactID)
		if err != nil {
			return "", "", "", err
		}
		if contact.ClientID != clientID {
			return "", "", "", apperr.ErrNotFound
		}
	}
	name, phone, email = Snapshot(client, contact)
	return name, phone, email, nil
}

// SaveContact inserts or updates a contact under a company client. Contacts
// are rejected under individual clients.
func (s *Service) SaveContact(ctx context.Context, orgID, clientID string, contact models.Contact, actor *models.OrgUser) (string, error) {
	if !actor.Can(models.PermViewClients) {
		return "", apperr.ErrUnauthorized
	}
	if strings.TrimSpace(contact.Name) == "" {
		return "", apperr.Validation("name", "contact name is required")
	}

	client, err := s.store.FindClientByID(ctx, orgID, clientID)
	if err != nil {
		return "", err
	}
	if client.Type != models.ClientCompany {
		return "", apperr.Validation("client_id", "contacts exist only under company clients")
	}

	contact.OrganizationID = orgID
	contact.ClientID = clientID
	if contact.ID.IsZero() {
		return s.store.InsertContact(ctx, contact)
	}
	return contact.ID.Hex(), s.store.UpdateContact(ctx, contact)
}

// DeleteContact removes one contact.
func (s *Service) DeleteContact(ctx context.Context, orgID, clientID, contactID string, actor *models.OrgUser) error {
	if !actor.Can(models.PermViewClients) {
		return apperr.ErrUnauthorized
	}
	return s.store.DeleteContact(ctx, orgID, clientID, contactID)
}

// ListContacts returns a client's contacts.
func (s *Service) ListContacts(ctx context.Context, orgID, clientID string, actor *models.OrgUser) ([]models.Contact, error) {
	if !actor.Can(models.PermViewClients) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.ContactsForClient(ctx, orgID, clientID)
}

// Snapshot returns the denormalized client fields stamped onto a ticket at
// assignment time. Later directory edits never touch existing tickets.
func Snapshot(client *models.Client, contact *models.Contact) (name, phone, email string) {
	name = client.DisplayName()
	phone = client.Phone
	email = client.Email
	if contact != nil {
		name = contact.Name + " (" + client.DisplayName() + ")"
		if contact.Phone != "" {
			phone = contact.Phone
		}
		if contact.Email != "" {
			email = contact.Email
		}
	}
	return name, phone, email
}
