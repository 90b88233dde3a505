package realtime

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"fleetmarket-backend/internal/apperrors"
	"fleetmarket-backend/internal/config"
	"fleetmarket-backend/internal/logger"
	"fleetmarket-backend/internal/security"
)

// Handler upgrades authenticated HTTP requests to websocket connections and
// hands them to the hub. The credential is checked before the upgrade, so a
// rejected connection never creates any subscription state.
type Handler struct {
	hub      *Hub
	gate     *security.SocketAuthGate
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, gate *security.SocketAuthGate, cfg config.RealtimeConfig) *Handler {
	return &Handler{
		hub:  hub,
		gate: gate,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from the marketplace frontend origin;
			// cross-origin policy is enforced upstream.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, err := h.gate.Authenticate(r.Context(), extractToken(r))
	if err != nil {
		logger.Info("realtime connection refused", "reason", apperrors.Code(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(apperrors.StatusCode(err))
		w.Write([]byte(`{"error":"` + apperrors.Code(err) + `"}`))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(uuid.NewString(), identity, conn, h.hub, h.cfg.SendBufferSize)
	h.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// extractToken pulls the bearer credential from the Authorization header or,
// for browser websocket clients that cannot set headers, the token query
// parameter.
func extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return auth[7:]
	}
	return r.URL.Query().Get("token")
}
