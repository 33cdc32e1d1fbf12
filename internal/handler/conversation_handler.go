package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/middleware"
	"github.com/stayhub/stayhub-backend/internal/service"
)

// ConversationHandler handles derived-conversation HTTP requests
type ConversationHandler struct {
	conversations service.ConversationService
	messages      service.MessageService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(conversations service.ConversationService, messages service.MessageService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, messages: messages}
}

// ListConversations handles GET /api/v1/messages/conversations
// @Summary List the caller's conversations
// @Tags conversations
// @Produce json
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Param type query string false "all | reservations | general | support"
// @Param unreadOnly query bool false "only conversations with unread messages"
// @Param conversationWith query string false "restrict to a counterpart"
// @Param reservationId query string false "restrict to a reservation"
// @Success 200 {object} common.APIResponse{data=[]domain.ConversationSummary}
// @Router /messages/conversations [get]
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	page, limit := parsePagination(c)
	filters := domain.ConversationFilters{
		Type:             c.Query("type"),
		UnreadOnly:       c.Query("unreadOnly") == "true",
		ConversationWith: c.Query("conversationWith"),
		ReservationID:    c.Query("reservationId"),
	}

	conversations, meta, err := h.conversations.ListConversations(c.Request.Context(), userID, filters, page, limit)
	if err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: conversations, Meta: meta})
}

// GetConversationMessages handles GET /api/v1/messages/conversations/:conversation_id
// @Summary Messages of one conversation, chronological
// @Tags conversations
// @Produce json
// @Param conversation_id path string true "conversation id (reservation_<id> or general_<idA>_<idB>)"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageResponse}
// @Router /messages/conversations/{conversation_id} [get]
func (h *ConversationHandler) GetConversationMessages(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	page, limit := parsePagination(c)
	messages, meta, err := h.conversations.GetConversationMessages(c.Request.Context(), userID, c.Param("conversation_id"), page, limit)
	if err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: messages, Meta: meta})
}

// StartConversation handles POST /api/v1/messages/conversations
// @Summary Start a conversation with its first message
// @Tags conversations
// @Accept json
// @Produce json
// @Param request body domain.StartConversationRequest true "first message"
// @Success 201 {object} common.APIResponse{data=domain.MessageResponse}
// @Router /messages/conversations [post]
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req domain.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.messages.StartConversation(c.Request.Context(), userID, middleware.GetUserRole(c), &req)
	if err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, common.APIResponse{Data: result})
}

// DeleteConversation handles DELETE /api/v1/messages/conversations/:conversation_id
// @Summary Soft-delete a conversation (marks all messages read)
// @Tags conversations
// @Produce json
// @Param conversation_id path string true "conversation id"
// @Success 204
// @Router /messages/conversations/{conversation_id} [delete]
func (h *ConversationHandler) DeleteConversation(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	if err := h.conversations.DeleteConversation(c.Request.Context(), userID, c.Param("conversation_id")); err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// MarkConversationRead handles PUT /api/v1/messages/conversations/:conversation_id/read
// @Summary Mark an entire conversation as read
// @Tags conversations
// @Produce json
// @Param conversation_id path string true "conversation id"
// @Success 204
// @Router /messages/conversations/{conversation_id}/read [put]
func (h *ConversationHandler) MarkConversationRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	if err := h.conversations.MarkConversationAsRead(c.Request.Context(), userID, c.Param("conversation_id")); err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
