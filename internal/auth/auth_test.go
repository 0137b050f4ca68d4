package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tagworks/servicedesk/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRY", "1h")
	service, err := NewService()
	assert.NoError(t, err)
	return service
}

func TestHashAndCheckPassword(t *testing.T) {
	service := newTestService(t)

	hash, err := service.HashPassword("correct horse battery")
	assert.NoError(t, err)
	assert.NotEqual(t, "correct horse battery", hash)

	assert.True(t, service.CheckPassword("correct horse battery", hash))
	assert.False(t, service.CheckPassword("wrong password", hash))
}

func TestTokenRoundTrip(t *testing.T) {
	service := newTestService(t)
	user := &models.OrgUser{
		ID:             primitive.NewObjectID(),
		Email:          "tech@example.com",
		OrganizationID: "org-1",
	}

	token, err := service.GenerateToken(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
	assert.Equal(t, "tech@example.com", claims.Email)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.NotEmpty(t, claims.TokenID)
	assert.Greater(t, claims.Exp, time.Now().Unix())
}

func TestEachTokenGetsItsOwnID(t *testing.T) {
	service := newTestService(t)
	user := &models.OrgUser{ID: primitive.NewObjectID(), Email: "tech@example.com"}

	first, err := service.GenerateToken(user)
	assert.NoError(t, err)
	second, err := service.GenerateToken(user)
	assert.NoError(t, err)

	firstClaims, err := service.ValidateToken(first)
	assert.NoError(t, err)
	secondClaims, err := service.ValidateToken(second)
	assert.NoError(t, err)
	assert.NotEqual(t, firstClaims.TokenID, secondClaims.TokenID)
}

func TestValidateToken_BearerPrefixAccepted(t *testing.T) {
	service := newTestService(t)
	user := &models.OrgUser{ID: primitive.NewObjectID(), Email: "tech@example.com"}

	token, err := service.GenerateToken(user)
	assert.NoError(t, err)

	claims, err := service.ValidateToken("Bearer " + token)
	assert.NoError(t, err)
	assert.Equal(t, user.ID.Hex(), claims.UserID)
}

func TestValidateToken_Garbage(t *testing.T) {
	service := newTestService(t)

	_, err := service.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	service := newTestService(t)
	user := &models.OrgUser{ID: primitive.NewObjectID(), Email: "tech@example.com"}
	token, err := service.GenerateToken(user)
	assert.NoError(t, err)

	t.Setenv("JWT_SECRET", "another-secret")
	other, err := NewService()
	assert.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	service := newTestService(t)

	token, err := service.ExtractTokenFromHeader("Bearer abc123")
	assert.NoError(t, err)
	assert.Equal(t, "abc123", token)

	_, err = service.ExtractTokenFromHeader("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ExtractTokenFromHeader("Basic abc123")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = service.ExtractTokenFromHeader("Bearer")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenLifetime(t *testing.T) {
	service := newTestService(t)
	assert.Equal(t, time.Hour, service.TokenLifetime())
}
