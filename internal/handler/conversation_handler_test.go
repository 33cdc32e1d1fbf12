package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockConversationService is a mock implementation of service.ConversationService
type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) ListConversations(ctx context.Context, userID string, filters domain.ConversationFilters, page, limit int) ([]*domain.ConversationSummary, *common.Meta, error) {
	args := m.Called(ctx, userID, filters, page, limit)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]*domain.ConversationSummary), args.Get(1).(*common.Meta), args.Error(2)
}

func (m *MockConversationService) GetConversationMessages(ctx context.Context, userID, key string, page, limit int) ([]*domain.MessageResponse, *common.Meta, error) {
	args := m.Called(ctx, userID, key, page, limit)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]*domain.MessageResponse), args.Get(1).(*common.Meta), args.Error(2)
}

func (m *MockConversationService) MarkConversationAsRead(ctx context.Context, userID, key string) error {
	args := m.Called(ctx, userID, key)
	return args.Error(0)
}

func (m *MockConversationService) DeleteConversation(ctx context.Context, userID, key string) error {
	args := m.Called(ctx, userID, key)
	return args.Error(0)
}

func TestListConversations_FiltersFromQuery(t *testing.T) {
	svc := new(MockConversationService)
	h := NewConversationHandler(svc, nil)
	r := gin.New()
	r.GET("/conversations", authAs("guest1", domain.RoleGuest), h.ListConversations)

	expected := domain.ConversationFilters{
		Type:             "reservations",
		UnreadOnly:       true,
		ConversationWith: "owner1",
		ReservationID:    "res42",
	}
	svc.On("ListConversations", mock.Anything, "guest1", expected, 2, 10).
		Return([]*domain.ConversationSummary{}, &common.Meta{Page: 2, Limit: 10, Total: 0}, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/conversations?type=reservations&unreadOnly=true&conversationWith=owner1&reservationId=res42&page=2&limit=10", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestListConversations_UnknownTypeMapsTo400(t *testing.T) {
	svc := new(MockConversationService)
	h := NewConversationHandler(svc, nil)
	r := gin.New()
	r.GET("/conversations", authAs("guest1", domain.RoleGuest), h.ListConversations)

	svc.On("ListConversations", mock.Anything, "guest1", mock.Anything, 1, 20).
		Return(nil, nil, common.ErrInvalidInput)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/conversations?type=archived", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetConversationMessages_ForbiddenMapsTo403(t *testing.T) {
	svc := new(MockConversationService)
	h := NewConversationHandler(svc, nil)
	r := gin.New()
	r.GET("/conversations/:conversation_id", authAs("intruder", domain.RoleGuest), h.GetConversationMessages)

	svc.On("GetConversationMessages", mock.Anything, "intruder", "general_guest1_owner1", 1, 20).
		Return(nil, nil, common.ErrForbidden)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/conversations/general_guest1_owner1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	// The forbidden body must not reveal whether the conversation exists
	var resp common.APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "forbidden", resp.Error.Message)
}

func TestGetConversationMessages_MalformedKeyMapsTo400(t *testing.T) {
	svc := new(MockConversationService)
	h := NewConversationHandler(svc, nil)
	r := gin.New()
	r.GET("/conversations/:conversation_id", authAs("guest1", domain.RoleGuest), h.GetConversationMessages)

	svc.On("GetConversationMessages", mock.Anything, "guest1", "banana", 1, 20).
		Return(nil, nil, common.ErrMalformedKey)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/conversations/banana", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStartConversation_Created(t *testing.T) {
	convSvc := new(MockConversationService)
	msgSvc := new(MockMessageService)
	h := NewConversationHandler(convSvc, msgSvc)
	r := gin.New()
	r.POST("/conversations", authAs("guest1", domain.RoleGuest), h.StartConversation)

	msgSvc.On("StartConversation", mock.Anything, "guest1", domain.RoleGuest, mock.MatchedBy(func(req *domain.StartConversationRequest) bool {
		return req.Subject == "Parking" && req.RecipientID == "owner1"
	})).Return(&domain.MessageResponse{ID: 1, ConversationID: "general_guest1_owner1", Subject: "Parking"}, nil)

	body := `{"recipientId":"owner1","recipientType":"owner","subject":"Parking","content":"Is parking available?"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/conversations", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	msgSvc.AssertExpectations(t)
}

func TestDeleteConversation_NoContent(t *testing.T) {
	svc := new(MockConversationService)
	h := NewConversationHandler(svc, nil)
	r := gin.New()
	r.DELETE("/conversations/:conversation_id", authAs("guest1", domain.RoleGuest), h.DeleteConversation)

	svc.On("DeleteConversation", mock.Anything, "guest1", "general_guest1_owner1").Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("DELETE", "/conversations/general_guest1_owner1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestMarkConversationRead_NoContent(t *testing.T) {
	svc := new(MockConversationService)
	h := NewConversationHandler(svc, nil)
	r := gin.New()
	r.PUT("/conversations/:conversation_id/read", authAs("guest1", domain.RoleGuest), h.MarkConversationRead)

	svc.On("MarkConversationAsRead", mock.Anything, "guest1", "reservation_res42").Return(nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/conversations/reservation_res42/read", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}
