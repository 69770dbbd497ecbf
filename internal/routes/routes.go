package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rentalhub/rental-backend/internal/handler"
	"github.com/rentalhub/rental-backend/internal/middleware"
	"github.com/rentalhub/rental-backend/pkg/jwt"
)

// Handlers groups everything the router dispatches to
type Handlers struct {
	Conversation *handler.ConversationHandler
	WS           *handler.WSHandler
	Health       *handler.HealthHandler
}

// Setup configures all routes. redisClient may be nil, which disables rate limiting.
func Setup(router *gin.Engine, h Handlers, jwtManager *jwt.Manager, redisClient *redis.Client, messagesPerMinute int) {
	router.GET("/health", h.Health.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Identity is established with the authenticate event after upgrade
	router.GET("/ws", h.WS.Connect)

	api := router.Group("/api/v1", middleware.JWTAuth(jwtManager))

	conversations := api.Group("/conversations")
	{
		conversations.GET("", h.Conversation.ListConversations)
		conversations.POST("", h.Conversation.CreateConversation)
		conversations.GET("/:id", h.Conversation.GetConversation)
		conversations.DELETE("/:id", h.Conversation.DeleteConversation)

		conversations.GET("/:id/messages", h.Conversation.ListMessages)
		conversations.POST("/:id/messages",
			middleware.RateLimitPerUser(redisClient, middleware.MessageRateLimitConfig(messagesPerMinute)),
			h.Conversation.SendMessage,
		)
		conversations.POST("/:id/read", h.Conversation.MarkRead)
	}

	api.GET("/users/online", h.Conversation.OnlineUsers)
}
