// Package tickets owns the ticket lifecycle: create, update, quick status
// updates and delete. Every mutation is permission-checked before any store
// call, derives its audit entries, and commits the ticket together with
// those entries as one atomic unit.
package tickets

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/history"
	"github.com/tagworks/servicedesk/internal/models"
)

// Service is the ticket lifecycle manager.
type Service struct {
	store   db.TicketStore
	entries db.HistoryStore
}

// NewService creates a ticket lifecycle service.
func NewService(store db.TicketStore, entries db.HistoryStore) *Service {
	return &Service{store: store, entries: entries}
}

// Create validates the intake draft, derives its Created (and optional
// NoteAdded) entries and commits ticket plus history atomically. Requires
// the scan capability. Returns the new ticket id.
func (s *Service) Create(ctx context.Context, orgID string, draft models.ServiceItem, noteText string, actor *models.OrgUser) (string, error) {
	if !actor.Can(models.PermScan) {
		return "", apperr.ErrUnauthorized
	}
	if strings.TrimSpace(draft.TagID) == "" {
		return "", apperr.Validation("tag_id", "identifier is required")
	}
	if strings.TrimSpace(draft.DeviceName) == "" {
		return "", apperr.Validation("device_name", "device name is required")
	}
	if draft.Status == "" {
		draft.Status = models.StatusReceived
	}
	if !models.IsValidStatus(draft.Status) {
		return "", apperr.Validation("status", "unknown status "+string(draft.Status))
	}

	now := time.Now().UTC()
	draft.OrganizationID = orgID
	if draft.DateReceived.IsZero() {
		draft.DateReceived = now
	}
	draft.LastUpdated = now

	derived := history.Derive(nil, draft, noteText, actor.Email)
	stamp(&derived, orgID, now)

	draft.ServiceNotes = []models.Note{}
	if derived.Note != nil {
		draft.ServiceNotes = append(draft.ServiceNotes, *derived.Note)
	}

	id, err := s.store.CreateWithHistory(ctx, draft, derived.Entries)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"ticket": id, "tag": draft.TagID, "user": actor.Email}).
		Info("ticket created")
	return id, nil
}

// Update takes the full edited ticket as proposed by the caller, merges it
// onto the persisted state (identity and audit fields never move), derives
// the history entries and commits everything atomically. An edit that
// changes nothing and carries no note performs no write and returns
// ErrNoChanges.
func (s *Service) Update(ctx context.Context, orgID, ticketID string, proposed models.ServiceItem, noteText string, actor *models.OrgUser) error {
	if !actor.Can(models.PermViewServiceList) {
		return apperr.ErrUnauthorized
	}
	if proposed.Status != "" && !models.IsValidStatus(proposed.Status) {
		return apperr.Validation("status", "unknown status "+string(proposed.Status))
	}
	if strings.TrimSpace(proposed.DeviceName) == "" {
		return apperr.Validation("device_name", "device name is required")
	}

	current, err := s.store.FindByID(ctx, orgID, ticketID)
	if err != nil {
		return err
	}
	next := merge(*current, proposed)
	return s.commit(ctx, orgID, current, next, noteText, actor)
}

// QuickUpdate is the scan-driven fast path: a status change and/or a note,
// nothing else. It shares Update's derivation and commit path.
func (s *Service) QuickUpdate(ctx context.Context, orgID, ticketID string, status models.ServiceStatus, noteText string, actor *models.OrgUser) error {
	if !actor.Can(models.PermViewServiceList) {
		return apperr.ErrUnauthorized
	}
	if !models.IsValidStatus(status) {
		return apperr.Validation("status", "unknown status "+string(status))
	}

	current, err := s.store.FindByID(ctx, orgID, ticketID)
	if err != nil {
		return err
	}
	next := *current
	next.Status = status
	return s.commit(ctx, orgID, current, next, noteText, actor)
}

// commit derives and, if anything changed, writes the ticket and its new
// history entries in one atomic unit.
func (s *Service) commit(ctx context.Context, orgID string, current *models.ServiceItem, next models.ServiceItem, noteText string, actor *models.OrgUser) error {
	derived := history.Derive(current, next, noteText, actor.Email)
	if derived.Empty() {
		return apperr.ErrNoChanges
	}

	now := time.Now().UTC()
	next.LastUpdated = now
	stamp(&derived, orgID, now)

	if err := s.store.UpdateWithHistory(ctx, next, derived.Note, derived.Entries); err != nil {
		return err
	}
	log.WithFields(log.Fields{"ticket": next.ID.Hex(), "entries": len(derived.Entries), "user": actor.Email}).
		Info("ticket updated")
	return nil
}

// Delete removes a ticket and its entire history subcollection. This is an
// administrative operation.
func (s *Service) Delete(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) error {
	if !actor.Can(models.PermManageUsers) {
		return apperr.ErrUnauthorized
	}
	if err := s.store.DeleteWithHistory(ctx, orgID, ticketID); err != nil {
		return err
	}
	log.WithFields(log.Fields{"ticket": ticketID, "user": actor.Email}).Info("ticket deleted")
	return nil
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) (*models.ServiceItem, error) {
	if !actor.Can(models.PermViewServiceList) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.FindByID(ctx, orgID, ticketID)
}

// List returns the organization's tickets.
func (s *Service) List(ctx context.Context, orgID string, actor *models.OrgUser) ([]models.ServiceItem, error) {
	if !actor.Can(models.PermViewServiceList) {
		return nil, apperr.ErrUnauthorized
	}
	return s.store.List(ctx, orgID)
}

// History returns one ticket's audit trail, newest first.
func (s *Service) History(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) ([]models.HistoryEntry, error) {
	if !actor.Can(models.PermViewHistory) {
		return nil, apperr.ErrUnauthorized
	}
	return s.entries.ForTicket(ctx, orgID, ticketID, 0)
}

// OrgHistory returns the newest entries across all of the organization's
// tickets.
func (s *Service) OrgHistory(ctx context.Context, orgID string, limit int64, actor *models.OrgUser) ([]models.HistoryEntry, error) {
	if !actor.Can(models.PermViewHistory) {
		return nil, apperr.ErrUnauthorized
	}
	return s.entries.ForOrganization(ctx, orgID, limit)
}

// stamp assigns the commit-time values derivation leaves open: the shared
// timestamp, the organization scope, and the note id.
func stamp(d *history.Derivation, orgID string, now time.Time) {
	for i := range d.Entries {
		d.Entries[i].Timestamp = now
		d.Entries[i].OrganizationID = orgID
	}
	if d.Note != nil {
		d.Note.ID = uuid.NewString()
		d.Note.Timestamp = now
	}
}

// merge lays the proposed edit over the persisted state. The editable
// surface is replaced wholesale (the edit form submits the complete ticket);
// identity and audit fields are pinned to the persisted values. A zero
// proposed status means "unchanged". Field-level last-write-wins: no version
// token is checked, a concurrent editor's change can be overwritten.
func merge(current models.ServiceItem, proposed models.ServiceItem) models.ServiceItem {
	next := proposed
	next.ID = current.ID
	next.TagID = current.TagID
	next.OrganizationID = current.OrganizationID
	next.DateReceived = current.DateReceived
	next.LastUpdated = current.LastUpdated
	next.ServiceNotes = current.ServiceNotes
	if proposed.Status == "" {
		next.Status = current.Status
	}
	return next
}
