// Package resolver maps a scanned identifier to an existing ticket or to a
// fresh create draft. It has no knowledge of which physical modality (NFC,
// camera) produced the identifier.
package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/models"
)

// TicketFinder is the read-side store dependency.
type TicketFinder interface {
	FindByTag(ctx context.Context, orgID, tagID string) (*models.ServiceItem, error)
}

// Resolution is the outcome of a scan. Found carries the existing ticket
// for the quick-update path; otherwise Draft is a freshly-initialized stub
// for the create path. Nothing is persisted until the caller saves.
type Resolution struct {
	Found  bool                `json:"found"`
	Ticket *models.ServiceItem `json:"ticket,omitempty"`
	Draft  *models.ServiceItem `json:"draft,omitempty"`
}

// Resolver serializes scan resolution per device session: a second scan
// while one is outstanding for the same session is rejected, so one physical
// scan event never produces duplicate prompts.
type Resolver struct {
	store TicketFinder

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates a Resolver.
func New(store TicketFinder) *Resolver {
	return &Resolver{store: store, inflight: make(map[string]struct{})}
}

// Resolve looks up the identifier within the organization. This is a read,
// not a reservation; the store's unique tag index backstops the
// not-found-then-create race.
func (r *Resolver) Resolve(ctx context.Context, orgID, sessionID, identifier string) (*Resolution, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, apperr.Validation("identifier", "empty scan result")
	}

	if err := r.acquire(sessionID); err != nil {
		return nil, err
	}
	defer r.release(sessionID)

	item, err := r.store.FindByTag(ctx, orgID, identifier)
	switch {
	case err == nil:
		return &Resolution{Found: true, Ticket: item}, nil
	case errors.Is(err, apperr.ErrNotFound):
		draft := models.NewDraft(orgID, identifier, time.Now().UTC())
		return &Resolution{Found: false, Draft: &draft}, nil
	default:
		log.WithError(err).WithField("identifier", identifier).Error("scan resolution failed")
		return nil, err
	}
}

func (r *Resolver) acquire(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inflight[sessionID]; busy {
		return apperr.ErrScanInProgress
	}
	r.inflight[sessionID] = struct{}{}
	return nil
}

func (r *Resolver) release(sessionID string) {
	r.mu.Lock()
	delete(r.inflight, sessionID)
	r.mu.Unlock()
}
