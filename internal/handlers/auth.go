package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/auth"
	"github.com/tagworks/servicedesk/internal/db"
	"github.com/tagworks/servicedesk/internal/middleware"
	"github.com/tagworks/servicedesk/internal/models"
)

// AuthHandler handles login and logout.
type AuthHandler struct {
	authService *auth.Service
	revocations auth.RevocationStore
	users       db.UserStore
}

// NewAuthHandler creates an authentication handler.
func NewAuthHandler(authService *auth.Service, revocations auth.RevocationStore, users db.UserStore) *AuthHandler {
	return &AuthHandler{authService: authService, revocations: revocations, users: users}
}

// LoginRequest is the login request body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the successful login response.
type LoginResponse struct {
	Token string         `json:"token"`
	User  models.OrgUser `json:"user"`
}

// Login verifies the credential and issues a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	cred, err := h.users.FindCredentialByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		writeError(w, err)
		return
	}
	if !h.authService.CheckPassword(req.Password, cred.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	user, err := h.users.FindByID(r.Context(), cred.UserID)
	if err != nil {
		// Credential without profile; login cannot proceed.
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	log.WithField("user", user.Email).Info("login")
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, User: *user})
}

// Logout revokes the current session so further mutation attempts from it
// are rejected immediately.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	ttl := time.Until(time.Unix(claims.Exp, 0))
	if ttl < 0 {
		ttl = time.Minute
	}
	if err := h.revocations.Revoke(r.Context(), claims.TokenID, ttl); err != nil {
		log.WithError(err).Error("session revocation failed")
		http.Error(w, "Logout failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
