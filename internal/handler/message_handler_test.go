package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/service"
	"github.com/stayhub/stayhub-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitStructured("production")
}

// MockMessageService is a mock implementation of service.MessageService
type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Send(ctx context.Context, senderID, senderRole string, req *domain.SendMessageRequest) (*domain.MessageResponse, error) {
	args := m.Called(ctx, senderID, senderRole, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MessageResponse), args.Error(1)
}

func (m *MockMessageService) StartConversation(ctx context.Context, senderID, senderRole string, req *domain.StartConversationRequest) (*domain.MessageResponse, error) {
	args := m.Called(ctx, senderID, senderRole, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MessageResponse), args.Error(1)
}

func (m *MockMessageService) MarkAsRead(ctx context.Context, userID string, messageIDs []uint64) error {
	args := m.Called(ctx, userID, messageIDs)
	return args.Error(0)
}

func (m *MockMessageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// authAs injects an authenticated principal the way JWTAuth does
func authAs(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", userID)
		c.Set("userRole", role)
		c.Next()
	}
}

func newMessageRouter(svc service.MessageService) (*gin.Engine, *MessageHandler) {
	h := NewMessageHandler(svc, nil)
	r := gin.New()
	return r, h
}

func TestSendMessage_Success(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.POST("/messages", authAs("guest1", domain.RoleGuest), h.SendMessage)

	svc.On("Send", mock.Anything, "guest1", domain.RoleGuest, mock.AnythingOfType("*domain.SendMessageRequest")).
		Return(&domain.MessageResponse{
			ID:             1,
			ConversationID: "general_guest1_owner1",
			SenderID:       "guest1",
			RecipientID:    "owner1",
			Content:        "hello",
		}, nil)

	body, _ := json.Marshal(gin.H{
		"recipientId":   "owner1",
		"recipientType": "owner",
		"content":       "hello",
	})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "general_guest1_owner1", data["conversationId"])
}

func TestSendMessage_Unauthenticated(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.POST("/messages", h.SendMessage)

	body, _ := json.Marshal(gin.H{"recipientId": "owner1", "recipientType": "owner", "content": "hello"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessage_MissingBodyFields(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.POST("/messages", authAs("guest1", domain.RoleGuest), h.SendMessage)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/messages", bytes.NewReader([]byte(`{"content":"hi"}`)))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSendMessage_ValidationErrorMapsTo400(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.POST("/messages", authAs("guest1", domain.RoleGuest), h.SendMessage)

	svc.On("Send", mock.Anything, "guest1", domain.RoleGuest, mock.Anything).
		Return(nil, common.ErrInvalidInput)

	body, _ := json.Marshal(gin.H{"recipientId": "guest1", "recipientType": "guest", "content": "hi"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/messages", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMarkRead_NoContent(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.PUT("/messages/mark-read", authAs("owner1", domain.RoleOwner), h.MarkRead)

	svc.On("MarkAsRead", mock.Anything, "owner1", []uint64{1, 2}).Return(nil)

	body, _ := json.Marshal(gin.H{"messageIds": []uint64{1, 2}})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/messages/mark-read", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	svc.AssertExpectations(t)
}

func TestMarkRead_ForeignMessageMapsTo404(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.PUT("/messages/mark-read", authAs("intruder", domain.RoleGuest), h.MarkRead)

	svc.On("MarkAsRead", mock.Anything, "intruder", []uint64{7}).Return(common.ErrMessageNotFound)

	body, _ := json.Marshal(gin.H{"messageIds": []uint64{7}})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PUT", "/messages/mark-read", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnreadCount(t *testing.T) {
	svc := new(MockMessageService)
	r, h := newMessageRouter(svc)
	r.GET("/messages/unread-count", authAs("owner1", domain.RoleOwner), h.UnreadCount)

	svc.On("UnreadCount", mock.Anything, "owner1").Return(int64(3), nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/messages/unread-count", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp common.APIResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(3), data["unreadCount"])
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name          string
		query         string
		expectedPage  int
		expectedLimit int
	}{
		{"defaults", "", 1, 20},
		{"explicit", "page=3&limit=50", 3, 50},
		{"zero page ignored", "page=0", 1, 20},
		{"oversized limit ignored", "limit=500", 1, 20},
		{"garbage ignored", "page=abc&limit=xyz", 1, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest("GET", "/?"+tt.query, nil)

			page, limit := parsePagination(c)
			assert.Equal(t, tt.expectedPage, page)
			assert.Equal(t, tt.expectedLimit, limit)
		})
	}
}
