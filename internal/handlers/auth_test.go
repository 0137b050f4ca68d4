package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/auth"
	"github.com/tagworks/servicedesk/internal/middleware"
	"github.com/tagworks/servicedesk/internal/models"
)

// MockUserStore is a mock implementation of db.UserStore.
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) CreateWithCredential(ctx context.Context, user models.OrgUser, cred models.Credential) (string, error) {
	args := m.Called(ctx, user, cred)
	return args.String(0), args.Error(1)
}

func (m *MockUserStore) FindByID(ctx context.Context, id string) (*models.OrgUser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.OrgUser), args.Error(1)
}

func (m *MockUserStore) List(ctx context.Context, orgID string) ([]models.OrgUser, error) {
	args := m.Called(ctx, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.OrgUser), args.Error(1)
}

func (m *MockUserStore) UpdatePermissions(ctx context.Context, id string, perms models.PermissionSet) error {
	args := m.Called(ctx, id, perms)
	return args.Error(0)
}

func (m *MockUserStore) DeleteProfile(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockUserStore) FindCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Credential), args.Error(1)
}

func (m *MockUserStore) DeleteCredential(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type MockRevocationStore struct {
	mock.Mock
}

func (m *MockRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

func loginBody(email, password string) *bytes.Buffer {
	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(LoginRequest{Email: email, Password: password})
	return &buf
}

func TestAuthHandler_Login(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	authService, err := auth.NewService()
	assert.NoError(t, err)

	hash, err := authService.HashPassword("secret-pass")
	assert.NoError(t, err)

	profile := &models.OrgUser{
		ID:             primitive.NewObjectID(),
		Email:          "tech@example.com",
		OrganizationID: "org-1",
	}
	cred := &models.Credential{
		UserID:       profile.ID.Hex(),
		Email:        "tech@example.com",
		PasswordHash: hash,
	}

	t.Run("valid credentials issue a token", func(t *testing.T) {
		users := new(MockUserStore)
		handler := NewAuthHandler(authService, new(MockRevocationStore), users)

		users.On("FindCredentialByEmail", mock.Anything, "tech@example.com").Return(cred, nil)
		users.On("FindByID", mock.Anything, profile.ID.Hex()).Return(profile, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody("tech@example.com", "secret-pass"))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var res LoginResponse
		json.NewDecoder(rec.Body).Decode(&res)
		assert.NotEmpty(t, res.Token)
		assert.Equal(t, "tech@example.com", res.User.Email)

		claims, err := authService.ValidateToken(res.Token)
		assert.NoError(t, err)
		assert.Equal(t, profile.ID.Hex(), claims.UserID)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := new(MockUserStore)
		handler := NewAuthHandler(authService, new(MockRevocationStore), users)

		users.On("FindCredentialByEmail", mock.Anything, "tech@example.com").Return(cred, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody("tech@example.com", "wrong"))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		users.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
	})

	t.Run("unknown email", func(t *testing.T) {
		users := new(MockUserStore)
		handler := NewAuthHandler(authService, new(MockRevocationStore), users)

		users.On("FindCredentialByEmail", mock.Anything, "nobody@example.com").Return(nil, apperr.ErrNotFound)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody("nobody@example.com", "secret-pass"))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("credential without profile", func(t *testing.T) {
		users := new(MockUserStore)
		handler := NewAuthHandler(authService, new(MockRevocationStore), users)

		users.On("FindCredentialByEmail", mock.Anything, "tech@example.com").Return(cred, nil)
		users.On("FindByID", mock.Anything, profile.ID.Hex()).Return(nil, apperr.ErrNotFound)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody("tech@example.com", "secret-pass"))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing fields", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockRevocationStore), new(MockUserStore))

		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", loginBody("", ""))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	authService, err := auth.NewService()
	assert.NoError(t, err)

	t.Run("revokes for the remaining token lifetime", func(t *testing.T) {
		revocations := new(MockRevocationStore)
		handler := NewAuthHandler(authService, revocations, new(MockUserStore))

		claims := &auth.Claims{
			UserID:  "user-1",
			TokenID: "jti-1",
			Exp:     time.Now().Add(time.Hour).Unix(),
		}
		revocations.On("Revoke", mock.Anything, "jti-1",
			mock.MatchedBy(func(ttl time.Duration) bool {
				return ttl > 55*time.Minute && ttl <= time.Hour
			}),
		).Return(nil)

		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.ClaimsContextKey, claims))
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		revocations.AssertExpectations(t)
	})

	t.Run("missing claims", func(t *testing.T) {
		handler := NewAuthHandler(authService, new(MockRevocationStore), new(MockUserStore))

		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		rec := httptest.NewRecorder()
		handler.Logout(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
