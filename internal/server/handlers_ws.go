package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

// upgrader accepts any origin: dashboards, volunteer apps, and test rigs
// connect from hosts we don't control.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// HandleWebSocket handles GET /ws. The group comes from the type query
// parameter; unknown values coerce to dashboard. The hub owns the
// connection from upgrade to disconnect.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		return
	}

	group := model.CoerceGroup(r.URL.Query().Get("type"))
	client := h.hub.NewClient(conn, group, r.URL.Query().Get("id"))
	client.Run(r.Context())
}
