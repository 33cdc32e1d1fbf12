package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/internal/common"
	"github.com/stayhub/stayhub-backend/internal/domain"
	"github.com/stayhub/stayhub-backend/internal/middleware"
	"github.com/stayhub/stayhub-backend/internal/service"
)

// MessageHandler handles message delivery, read tracking and search
type MessageHandler struct {
	service service.MessageService
	search  *service.SearchService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(svc service.MessageService, search *service.SearchService) *MessageHandler {
	return &MessageHandler{service: svc, search: search}
}

// SendMessage handles POST /api/v1/messages
// @Summary Send a message into an existing conversation
// @Tags messages
// @Accept json
// @Produce json
// @Param request body domain.SendMessageRequest true "message payload"
// @Success 200 {object} common.APIResponse{data=domain.MessageResponse}
// @Router /messages [post]
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.service.Send(c.Request.Context(), userID, middleware.GetUserRole(c), &req)
	if err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: result})
}

// MarkRead handles PUT /api/v1/messages/mark-read
// @Summary Mark specific messages as read
// @Tags messages
// @Accept json
// @Produce json
// @Param request body domain.MarkReadRequest true "message ids"
// @Success 204
// @Router /messages/mark-read [put]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), userID, req.MessageIDs); err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// UnreadCount handles GET /api/v1/messages/unread-count
// @Summary Total unread message count for the caller
// @Tags messages
// @Produce json
// @Success 200 {object} common.APIResponse
// @Router /messages/unread-count [get]
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	total, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: gin.H{"unreadCount": total}})
}

// Search handles GET /api/v1/messages/search
// @Summary Search message content
// @Tags messages
// @Produce json
// @Param q query string true "query, at least 2 characters"
// @Param page query int false "page"
// @Param limit query int false "page size"
// @Param type query string false "all | reservations | general | support"
// @Param reservationId query string false "reservation scope"
// @Success 200 {object} common.APIResponse{data=[]domain.MessageResponse}
// @Router /messages/search [get]
func (h *MessageHandler) Search(c *gin.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		common.ErrorResponse(c, http.StatusUnauthorized, "authentication required", nil)
		return
	}

	page, limit := parsePagination(c)
	filters := domain.SearchFilters{
		Type:          c.Query("type"),
		ReservationID: c.Query("reservationId"),
	}

	results, meta, err := h.search.Search(c.Request.Context(), userID, c.Query("q"), filters, page, limit)
	if err != nil {
		common.ErrorResponseFromErr(c, err)
		return
	}

	c.JSON(http.StatusOK, common.APIResponse{Data: results, Meta: meta})
}

// parsePagination reads page/limit query parameters with defaults
func parsePagination(c *gin.Context) (int, int) {
	page := 1
	if p, err := strconv.Atoi(c.Query("page")); err == nil && p > 0 {
		page = p
	}
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= 100 {
		limit = l
	}
	return page, limit
}
