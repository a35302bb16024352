package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/service"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
	"github.com/schooldesk/attendance-api/pkg/response"
)

// RealtimeHandler upgrades connections onto the class-change feed.
type RealtimeHandler struct {
	hub      *service.RealtimeHub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler constructs a realtime handler. allowedOrigins is the
// set of Origin headers accepted for the upgrade; empty allows all.
func NewRealtimeHandler(hub *service.RealtimeHub, allowedOrigins []string, logger *zap.Logger) *RealtimeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &RealtimeHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
		logger: logger,
	}
}

// Subscribe godoc
// @Summary Subscribe to class change events
// @Description Upgrades to a websocket that streams class created/updated/
// deleted events. Authenticate with a token query parameter.
// @Tags Realtime
// @Param token query string true "Access token"
// @Success 101
// @Failure 401 {object} response.Envelope
// @Router /realtime/classes [get]
func (h *RealtimeHandler) Subscribe(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the failure response.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.hub.Attach(conn, claims.UserID)
}
