package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/aldergrove/carecircle/internal/auth"
)

// HandleWebSocket returns an HTTP handler that upgrades connections to
// WebSocket and runs them as Hub clients scoped to the caregiver's care
// circles. Auth happens in the middleware chain before this handler is
// reached; circles resolves the senior IDs the authenticated user may
// watch.
func HandleWebSocket(hub *Hub, circles func(userID int64) ([]int64, error), logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := auth.UserID(r.Context())
		circleIDs, err := circles(userID)
		if err != nil {
			logger.Error("resolve care circles", "user_id", userID, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		conn, err := ws.Accept(w, r, nil)
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		client := NewClient(hub, conn, userID, circleIDs)
		client.Run(r.Context())
	}
}
