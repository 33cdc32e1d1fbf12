package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/stayhub/stayhub-backend/internal/handler"
	"github.com/stayhub/stayhub-backend/internal/middleware"
	"github.com/stayhub/stayhub-backend/pkg/jwt"
)

// Setup configures all API routes
func Setup(
	router *gin.Engine,
	messageHandler *handler.MessageHandler,
	conversationHandler *handler.ConversationHandler,
	jwtManager *jwt.Manager,
) {
	api := router.Group("/api/v1")

	// Every messaging endpoint requires an authenticated caller
	messages := api.Group("/messages", middleware.JWTAuth(jwtManager))
	{
		messages.POST("", messageHandler.SendMessage)
		messages.PUT("/mark-read", messageHandler.MarkRead)
		messages.GET("/unread-count", messageHandler.UnreadCount)
		messages.GET("/search", messageHandler.Search)

		conversations := messages.Group("/conversations")
		{
			conversations.GET("", conversationHandler.ListConversations)
			conversations.POST("", conversationHandler.StartConversation)
			conversations.GET("/:conversation_id", conversationHandler.GetConversationMessages)
			conversations.PUT("/:conversation_id/read", conversationHandler.MarkConversationRead)
			conversations.DELETE("/:conversation_id", conversationHandler.DeleteConversation)
		}
	}
}
