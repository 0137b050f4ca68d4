package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tagworks/servicedesk/internal/apperr"
	"github.com/tagworks/servicedesk/internal/middleware"
	"github.com/tagworks/servicedesk/internal/models"
	"github.com/tagworks/servicedesk/internal/resolver"
)

type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) Create(ctx context.Context, orgID string, draft models.ServiceItem, noteText string, actor *models.OrgUser) (string, error) {
	args := m.Called(ctx, orgID, draft, noteText, actor)
	return args.String(0), args.Error(1)
}

func (m *MockTicketService) Update(ctx context.Context, orgID, ticketID string, proposed models.ServiceItem, noteText string, actor *models.OrgUser) error {
	args := m.Called(ctx, orgID, ticketID, proposed, noteText, actor)
	return args.Error(0)
}

func (m *MockTicketService) QuickUpdate(ctx context.Context, orgID, ticketID string, status models.ServiceStatus, noteText string, actor *models.OrgUser) error {
	args := m.Called(ctx, orgID, ticketID, status, noteText, actor)
	return args.Error(0)
}

func (m *MockTicketService) Delete(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) error {
	args := m.Called(ctx, orgID, ticketID, actor)
	return args.Error(0)
}

func (m *MockTicketService) Get(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) (*models.ServiceItem, error) {
	args := m.Called(ctx, orgID, ticketID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceItem), args.Error(1)
}

func (m *MockTicketService) List(ctx context.Context, orgID string, actor *models.OrgUser) ([]models.ServiceItem, error) {
	args := m.Called(ctx, orgID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ServiceItem), args.Error(1)
}

func (m *MockTicketService) History(ctx context.Context, orgID, ticketID string, actor *models.OrgUser) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, orgID, ticketID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryEntry), args.Error(1)
}

func (m *MockTicketService) OrgHistory(ctx context.Context, orgID string, limit int64, actor *models.OrgUser) ([]models.HistoryEntry, error) {
	args := m.Called(ctx, orgID, limit, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.HistoryEntry), args.Error(1)
}

type MockTagResolver struct {
	mock.Mock
}

func (m *MockTagResolver) Resolve(ctx context.Context, orgID, sessionID, identifier string) (*resolver.Resolution, error) {
	args := m.Called(ctx, orgID, sessionID, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*resolver.Resolution), args.Error(1)
}

type MockTipProvider struct {
	mock.Mock
}

func (m *MockTipProvider) DiagnosticTips(ctx context.Context, item *models.ServiceItem) (string, error) {
	args := m.Called(ctx, item)
	return args.String(0), args.Error(1)
}

func requestUser() *models.OrgUser {
	perms := models.ExpandRole(models.RoleTechnician)
	return &models.OrgUser{
		ID:             primitive.NewObjectID(),
		Email:          "tech@example.com",
		OrganizationID: "org-1",
		Permissions:    &perms,
	}
}

func authedRequest(method, target string, body any, user *models.OrgUser) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if user != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, user))
	}
	return req
}

func TestTicketHandler_Create(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("Create", mock.Anything, "org-1",
			mock.MatchedBy(func(item models.ServiceItem) bool { return item.TagID == "TAG-001" }),
			"first note", user,
		).Return("new-id", nil)

		req := authedRequest(http.MethodPost, "/api/tickets", TicketRequest{
			Ticket: models.ServiceItem{TagID: "TAG-001", DeviceName: "Laptop X"},
			Note:   "first note",
		}, user)
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		assert.Equal(t, "new-id", body["id"])
	})

	t.Run("duplicate tag maps to conflict", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("Create", mock.Anything, "org-1", mock.Anything, "", user).
			Return("", apperr.ErrDuplicateIdentifier)

		req := authedRequest(http.MethodPost, "/api/tickets", TicketRequest{
			Ticket: models.ServiceItem{TagID: "TAG-001", DeviceName: "Laptop X"},
		}, user)
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already assigned")
	})

	t.Run("permission error maps to forbidden", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("Create", mock.Anything, "org-1", mock.Anything, "", user).
			Return("", apperr.ErrUnauthorized)

		req := authedRequest(http.MethodPost, "/api/tickets", TicketRequest{
			Ticket: models.ServiceItem{TagID: "TAG-001", DeviceName: "Laptop X"},
		}, user)
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewBufferString("{"))
		req = req.WithContext(context.WithValue(req.Context(), middleware.UserContextKey, requestUser()))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing user context", func(t *testing.T) {
		handler := NewTicketHandler(new(MockTicketService), nil, nil)

		req := authedRequest(http.MethodPost, "/api/tickets", TicketRequest{}, nil)
		rec := httptest.NewRecorder()
		handler.Create(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestTicketHandler_Update(t *testing.T) {
	t.Run("no changes reported as a message, not an error", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("Update", mock.Anything, "org-1", "ticket-1", mock.Anything, "", user).
			Return(apperr.ErrNoChanges)

		req := authedRequest(http.MethodPut, "/api/tickets/ticket-1", TicketRequest{
			Ticket: models.ServiceItem{DeviceName: "Laptop X"},
		}, user)
		req.SetPathValue("id", "ticket-1")
		rec := httptest.NewRecorder()
		handler.Update(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		assert.Equal(t, "No changes", body["message"])
	})

	t.Run("missing ticket", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("Update", mock.Anything, "org-1", "missing", mock.Anything, "", user).
			Return(apperr.ErrNotFound)

		req := authedRequest(http.MethodPut, "/api/tickets/missing", TicketRequest{
			Ticket: models.ServiceItem{DeviceName: "Laptop X"},
		}, user)
		req.SetPathValue("id", "missing")
		rec := httptest.NewRecorder()
		handler.Update(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("validation maps to bad request", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("Update", mock.Anything, "org-1", "ticket-1", mock.Anything, "", user).
			Return(apperr.Validation("status", "unknown status Lost"))

		req := authedRequest(http.MethodPut, "/api/tickets/ticket-1", TicketRequest{
			Ticket: models.ServiceItem{DeviceName: "Laptop X"},
		}, user)
		req.SetPathValue("id", "ticket-1")
		rec := httptest.NewRecorder()
		handler.Update(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTicketHandler_QuickUpdate(t *testing.T) {
	service := new(MockTicketService)
	handler := NewTicketHandler(service, nil, nil)
	user := requestUser()

	service.On("QuickUpdate", mock.Anything, "org-1", "ticket-1",
		models.StatusRepairing, "opened the case", user).Return(nil)

	req := authedRequest(http.MethodPost, "/api/tickets/ticket-1/quick-update", QuickUpdateRequest{
		Status: models.StatusRepairing,
		Note:   "opened the case",
	}, user)
	req.SetPathValue("id", "ticket-1")
	rec := httptest.NewRecorder()
	handler.QuickUpdate(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	service.AssertExpectations(t)
}

func TestTicketHandler_OrgHistory(t *testing.T) {
	t.Run("default limit", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("OrgHistory", mock.Anything, "org-1", int64(25), user).
			Return([]models.HistoryEntry{}, nil)

		req := authedRequest(http.MethodGet, "/api/history", nil, user)
		rec := httptest.NewRecorder()
		handler.OrgHistory(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("explicit limit", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("OrgHistory", mock.Anything, "org-1", int64(100), user).
			Return([]models.HistoryEntry{}, nil)

		req := authedRequest(http.MethodGet, "/api/history?limit=100", nil, user)
		rec := httptest.NewRecorder()
		handler.OrgHistory(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		service.AssertExpectations(t)
	})

	t.Run("missing index maps to service unavailable", func(t *testing.T) {
		service := new(MockTicketService)
		handler := NewTicketHandler(service, nil, nil)
		user := requestUser()

		service.On("OrgHistory", mock.Anything, "org-1", int64(25), user).
			Return(nil, apperr.Config("history index organization_id_1_timestamp_-1 is missing", nil))

		req := authedRequest(http.MethodGet, "/api/history", nil, user)
		rec := httptest.NewRecorder()
		handler.OrgHistory(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestTicketHandler_Resolve(t *testing.T) {
	t.Run("found ticket", func(t *testing.T) {
		tagResolver := new(MockTagResolver)
		handler := NewTicketHandler(new(MockTicketService), tagResolver, nil)
		user := requestUser()
		existing := &models.ServiceItem{TagID: "TAG-001"}

		tagResolver.On("Resolve", mock.Anything, "org-1", "session-a", "TAG-001").
			Return(&resolver.Resolution{Found: true, Ticket: existing}, nil)

		req := authedRequest(http.MethodPost, "/api/scan/resolve", ResolveRequest{
			SessionID:  "session-a",
			Identifier: "TAG-001",
		}, user)
		rec := httptest.NewRecorder()
		handler.Resolve(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var res resolver.Resolution
		json.NewDecoder(rec.Body).Decode(&res)
		assert.True(t, res.Found)
	})

	t.Run("scan permission required", func(t *testing.T) {
		tagResolver := new(MockTagResolver)
		handler := NewTicketHandler(new(MockTicketService), tagResolver, nil)
		perms := models.ExpandRole(models.RoleOffice)
		user := &models.OrgUser{Email: "office@example.com", OrganizationID: "org-1", Permissions: &perms}

		req := authedRequest(http.MethodPost, "/api/scan/resolve", ResolveRequest{
			SessionID:  "session-a",
			Identifier: "TAG-001",
		}, user)
		rec := httptest.NewRecorder()
		handler.Resolve(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		tagResolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing session id rejected before resolution", func(t *testing.T) {
		tagResolver := new(MockTagResolver)
		handler := NewTicketHandler(new(MockTicketService), tagResolver, nil)
		user := requestUser()

		req := authedRequest(http.MethodPost, "/api/scan/resolve", ResolveRequest{
			Identifier: "TAG-001",
		}, user)
		rec := httptest.NewRecorder()
		handler.Resolve(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		tagResolver.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("busy session maps to conflict", func(t *testing.T) {
		tagResolver := new(MockTagResolver)
		handler := NewTicketHandler(new(MockTicketService), tagResolver, nil)
		user := requestUser()

		tagResolver.On("Resolve", mock.Anything, "org-1", "session-a", "TAG-001").
			Return(nil, apperr.ErrScanInProgress)

		req := authedRequest(http.MethodPost, "/api/scan/resolve", ResolveRequest{
			SessionID:  "session-a",
			Identifier: "TAG-001",
		}, user)
		rec := httptest.NewRecorder()
		handler.Resolve(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestTicketHandler_Tips(t *testing.T) {
	t.Run("generator failure is soft", func(t *testing.T) {
		service := new(MockTicketService)
		tips := new(MockTipProvider)
		handler := NewTicketHandler(service, nil, tips)
		user := requestUser()
		item := &models.ServiceItem{DeviceName: "Laptop X"}

		service.On("Get", mock.Anything, "org-1", "ticket-1", user).Return(item, nil)
		tips.On("DiagnosticTips", mock.Anything, item).Return("", apperr.ErrTipsUnavailable)

		req := authedRequest(http.MethodGet, "/api/tickets/ticket-1/tips", nil, user)
		req.SetPathValue("id", "ticket-1")
		rec := httptest.NewRecorder()
		handler.Tips(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		assert.Contains(t, body["message"], "unavailable")
	})

	t.Run("successful suggestions", func(t *testing.T) {
		service := new(MockTicketService)
		tips := new(MockTipProvider)
		handler := NewTicketHandler(service, nil, tips)
		user := requestUser()
		item := &models.ServiceItem{DeviceName: "Laptop X"}

		service.On("Get", mock.Anything, "org-1", "ticket-1", user).Return(item, nil)
		tips.On("DiagnosticTips", mock.Anything, item).Return("1. Check the cable.", nil)

		req := authedRequest(http.MethodGet, "/api/tickets/ticket-1/tips", nil, user)
		req.SetPathValue("id", "ticket-1")
		rec := httptest.NewRecorder()
		handler.Tips(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		json.NewDecoder(rec.Body).Decode(&body)
		assert.Equal(t, "1. Check the cable.", body["tips"])
	})
}
