package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"logisync-backend/internal/logger"
	"logisync-backend/internal/middleware"
	"logisync-backend/pkg/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set headers on WebSocket requests; the token in the query string is the gate
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWebSocket upgrades HTTP connection to WebSocket.
// The JWT comes from the token query parameter, or from context when Auth ran first.
func HandleWebSocket(hub *Hub, jwtSecret string, tracker Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := logger.Get()

		var claims middleware.UserClaims
		if tokenString := r.URL.Query().Get("token"); tokenString != "" {
			parsed, err := middleware.ParseToken(jwtSecret, tokenString)
			if err != nil {
				l.Debug("Invalid WebSocket token", zap.Error(err))
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			claims = parsed
		} else {
			var ok bool
			claims, ok = middleware.GetUserFromContext(r)
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			l.Warn("WebSocket upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(claims.UserID, claims.OrganizationID, claims.Role, conn, hub, tracker)

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
