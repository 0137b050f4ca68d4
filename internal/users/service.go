// Package users is the organization user directory. Every privileged
// operation re-reads the acting user's stored permission record at this
// boundary; a client-side belief that it holds canManageUsers is never
// sufficient.
package users

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/models"
)

// Hasher hashes passwords when a credential is written.
type Hasher interface {
	HashPassword(password string) (string, error)
}

// Service is the user directory and RBAC enforcement point.
type Service struct {
	store  db.UserStore
	hasher Hasher
}

// NewService creates a user directory service.
func NewService(store db.UserStore, hasher Hasher) *Service {
	return &Service{store: store, hasher: hasher}
}

// CreateRequest describes a new user. Either Role or Permissions is set:
// a role expands to its permission set here, at write time, and is not
// stored; the expanded flags are the only authoritative record.
type CreateRequest struct {
	Email       string                `json:"email"`
	Password    string                `json:"password"`
	Role        models.Role           `json:"role,omitempty"`
	Permissions *models.PermissionSet `json:"permissions,omitempty"`
}

// Create adds a user (profile plus credential, atomically) to the acting
// user's organization.
func (s *Service) Create(ctx context.Context, actorID string, req CreateRequest) (string, error) {
	actor, err := s.requireManager(ctx, actorID)
	if err != nil {
		return "", err
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return "", apperr.Validation("email", "valid email is required")
	}
	if len(req.Password) < 8 {
		return "", apperr.Validation("password", "password must be at least 8 characters long")
	}

	perms, err := resolvePermissions(req)
	if err != nil {
		return "", err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return "", err
	}

	id, err := s.store.CreateWithCredential(ctx,
		models.OrgUser{
			Email:          email,
			OrganizationID: actor.OrganizationID,
			Permissions:    &perms,
		},
		models.Credential{PasswordHash: hash},
	)
	if err != nil {
		return "", err
	}
	log.WithFields(log.Fields{"admin": actor.Email, "user": email}).Info("user created")
	return id, nil
}

// UpdatePermissions replaces another user's permission set.
func (s *Service) UpdatePermissions(ctx context.Context, actorID, userID string, perms models.PermissionSet) error {
	actor, err := s.requireManager(ctx, actorID)
	if err != nil {
		return err
	}

	target, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.OrganizationID != actor.OrganizationID {
		return apperr.ErrNotFound
	}

	// The admin flag self-heals: granting it grants everything.
	if perms.CanManageUsers {
		perms = models.FullPermissions()
	}
	if err := s.store.UpdatePermissions(ctx, userID, perms); err != nil {
		return err
	}
	log.WithFields(log.Fields{"admin": actor.Email, "user": target.Email}).Info("permissions updated")
	return nil
}

// Delete removes a user's profile and credential. Self-deletion is
// forbidden regardless of permission flags. The target must belong to the
// actor's organization; users elsewhere look missing. If profile and
// credential have diverged, whichever remains is removed rather than
// failing outright.
func (s *Service) Delete(ctx context.Context, actorID, userID string) error {
	if actorID == userID {
		return apperr.ErrSelfDelete
	}
	actor, err := s.requireManager(ctx, actorID)
	if err != nil {
		return err
	}

	target, err := s.store.FindByID(ctx, userID)
	switch {
	case err == nil:
		if target.OrganizationID != actor.OrganizationID {
			return apperr.ErrNotFound
		}
	case isMissing(err):
		// Profile already gone; continue so the credential is reconciled.
	default:
		return err
	}

	profileErr := s.store.DeleteProfile(ctx, userID)
	if profileErr != nil && !isMissing(profileErr) {
		return profileErr
	}
	credErr := s.store.DeleteCredential(ctx, userID)
	if credErr != nil && !isMissing(credErr) {
		return credErr
	}
	if isMissing(profileErr) && isMissing(credErr) {
		return apperr.ErrNotFound
	}

	log.WithFields(log.Fields{"admin": actor.Email, "user": userID}).Info("user deleted")
	return nil
}

// List returns the users of the acting user's organization.
func (s *Service) List(ctx context.Context, actorID string) ([]models.OrgUser, error) {
	actor, err := s.store.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor.OrganizationID == "" {
		return nil, apperr.Validation("organization_id", "account is not assigned to an organization")
	}
	return s.store.List(ctx, actor.OrganizationID)
}

// requireManager re-reads the actor's stored record and verifies the
// canManageUsers flag on it.
func (s *Service) requireManager(ctx context.Context, actorID string) (*models.OrgUser, error) {
	actor, err := s.store.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.Can(models.PermManageUsers) {
		return nil, apperr.ErrUnauthorized
	}
	return actor, nil
}

func resolvePermissions(req CreateRequest) (models.PermissionSet, error) {
	if req.Role != "" {
		if !models.IsValidRole(req.Role) {
			return models.PermissionSet{}, apperr.Validation("role", "unknown role "+string(req.Role))
		}
		return models.ExpandRole(req.Role), nil
	}
	if req.Permissions == nil {
		return models.PermissionSet{}, apperr.Validation("permissions", "role or permissions required")
	}
	perms := *req.Permissions
	if perms.CanManageUsers {
		perms = models.FullPermissions()
	}
	return perms, nil
}

func isMissing(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
