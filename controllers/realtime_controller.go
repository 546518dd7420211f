package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/proserve-app/marketplace-backend/realtime"
	"github.com/proserve-app/marketplace-backend/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades the connection and registers it with the
// broadcast hub. The read loop exists only to detect disconnects; clients
// never send business messages.
// GET /ws?token=...
func HandleWebSocket(c *gin.Context) {
	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}

	realtime.RegisterClient(conn, userID)
	utils.InfoLogger.Printf("WebSocket client connected: user %d", userID)

	go func() {
		defer realtime.UnregisterClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
