package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rentalhub/rental-backend/internal/ws"
	"github.com/rentalhub/rental-backend/pkg/logger"
)

// WSHandler upgrades HTTP requests to chat WebSocket sessions
type WSHandler struct {
	hub            *ws.Hub
	dispatcher     ws.Handler
	allowedOrigins []string
	sendBuffer     int
	maxMessageSize int64
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler
func NewWSHandler(hub *ws.Hub, dispatcher ws.Handler, allowedOrigins string, sendBuffer int, maxMessageSize int64) *WSHandler {
	h := &WSHandler{
		hub:            hub,
		dispatcher:     dispatcher,
		allowedOrigins: parseOrigins(allowedOrigins),
		sendBuffer:     sendBuffer,
		maxMessageSize: maxMessageSize,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// parseOrigins parses comma-separated origins string
func parseOrigins(origins string) []string {
	if origins == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// checkOrigin validates the request origin against allowed origins
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // Same-origin requests don't have Origin header
	}

	// No allowed origins configured means any origin (development)
	if len(h.allowedOrigins) == 0 {
		return true
	}

	for _, allowed := range h.allowedOrigins {
		if origin == allowed || allowed == "*" {
			return true
		}
	}
	return false
}

// Connect handles GET /ws. The session is anonymous until the client sends
// an authenticate event.
func (h *WSHandler) Connect(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.GetLogger().Warn().Err(err).Str("client_ip", c.ClientIP()).Msg("websocket upgrade failed")
		return
	}

	client := ws.NewClient(h.hub, conn, h.sendBuffer, h.maxMessageSize)
	go client.Serve(h.dispatcher)
}
