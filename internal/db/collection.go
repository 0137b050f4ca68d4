package db

import (
	"context"

	"github.com/tagworks/servicedesk/internal/models"
)

// TicketStore defines ticket persistence. The WithHistory operations commit
// the ticket write and its history entries as one atomic unit.
type TicketStore interface {
	FindByTag(ctx context.Context, orgID, tagID string) (*models.ServiceItem, error)
	FindByID(ctx context.Context, orgID, id string) (*models.ServiceItem, error)
	List(ctx context.Context, orgID string) ([]models.ServiceItem, error)
	CreateWithHistory(ctx context.Context, item models.ServiceItem, entries []models.HistoryEntry) (string, error)
	UpdateWithHistory(ctx context.Context, item models.ServiceItem, note *models.Note, entries []models.HistoryEntry) error
	DeleteWithHistory(ctx context.Context, orgID, id string) error
}

// HistoryStore defines read access to the audit trail.
type HistoryStore interface {
	ForTicket(ctx context.Context, orgID, ticketID string, limit int64) ([]models.HistoryEntry, error)
	ForOrganization(ctx context.Context, orgID string, limit int64) ([]models.HistoryEntry, error)
}

// ClientStore defines client and contact persistence. DeleteClient removes
// the client's contacts in the same transaction.
type ClientStore interface {
	InsertClient(ctx context.Context, client models.Client) (string, error)
	UpdateClient(ctx context.Context, client models.Client) error
	DeleteClient(ctx context.Context, orgID, id string) error
	FindClientByID(ctx context.Context, orgID, id string) (*models.Client, error)
	ListClients(ctx context.Context, orgID string) ([]models.Client, error)

	InsertContact(ctx context.Context, contact models.Contact) (string, error)
	UpdateContact(ctx context.Context, contact models.Contact) error
	DeleteContact(ctx context.Context, orgID, clientID, contactID string) error
	FindContactByID(ctx context.Context, orgID, contactID string) (*models.Contact, error)
	ContactsForClient(ctx context.Context, orgID, clientID string) ([]models.Contact, error)
}

// UserStore defines user directory persistence. Profiles and credentials
// are separate records; CreateWithCredential writes both atomically, the
// delete operations remove them independently so callers can reconcile.
type UserStore interface {
	CreateWithCredential(ctx context.Context, user models.OrgUser, cred models.Credential) (string, error)
	FindByID(ctx context.Context, id string) (*models.OrgUser, error)
	List(ctx context.Context, orgID string) ([]models.OrgUser, error)
	UpdatePermissions(ctx context.Context, id string, perms models.PermissionSet) error
	DeleteProfile(ctx context.Context, id string) error
	FindCredentialByEmail(ctx context.Context, email string) (*models.Credential, error)
	DeleteCredential(ctx context.Context, userID string) error
}
