package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/RoModerate/romoderate/internal/auth"
	"github.com/RoModerate/romoderate/internal/httphelper"
	"github.com/RoModerate/romoderate/pkg/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var errUpgrader = errors.New("failed to upgrade websocket connection")

type realtimeHandler struct {
	coordinator *Coordinator
}

func NewHandlerRealtime(engine *gin.Engine, coordinator *Coordinator, authenticator httphelper.Authenticator, validOrigins []string) {
	handler := realtimeHandler{coordinator: coordinator}

	grp := engine.Group("/")
	{
		authed := grp.Use(authenticator.MiddlewareWS())
		authed.GET("/ws", handler.onConnect(validOrigins))
	}
}

func (h realtimeHandler) onConnect(validOrigins []string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		profile, _ := auth.CurrentProfile(ctx)

		wsConn, errConn := newClientConn(ctx, validOrigins)
		if errConn != nil {
			httphelper.SetError(ctx, httphelper.NewAPIErrorf(http.StatusBadRequest, errConn,
				"Cannot open ws connection"))

			return
		}

		client := h.coordinator.Connect(ctx, profile, wsConn)
		defer h.coordinator.Disconnect(client)

		for {
			var request Request
			if errRead := client.Next(&request); errRead != nil {
				if errors.Is(errRead, context.Canceled) {
					return
				}

				slog.Debug("Client read failed", slog.String("session_id", client.ID()), log.ErrAttr(errRead))

				return
			}

			if errHandle := h.handleRequest(client, request); errHandle != nil {
				client.Send(Response{Op: OpError, Payload: errorPayload{Message: errHandle.Error()}})
			}
		}
	}
}

func (h realtimeHandler) handleRequest(client *Client, request Request) error {
	switch request.Op {
	case OpSubscribe:
		client.Limit()

		var payload subscribePayload
		if errUnmarshal := json.Unmarshal(request.Payload, &payload); errUnmarshal != nil {
			return errors.Join(errUnmarshal, ErrParseMessage)
		}

		return h.coordinator.Subscribe(client, payload.CommunityID)
	case OpUnsubscribe:
		client.Limit()

		var payload subscribePayload
		if errUnmarshal := json.Unmarshal(request.Payload, &payload); errUnmarshal != nil {
			return errors.Join(errUnmarshal, ErrParseMessage)
		}

		h.coordinator.Unsubscribe(client, payload.CommunityID)

		return nil
	case OpPing:
		client.Ping()

		return nil
	default:
		return ErrUnexpectedMessage
	}
}

func newClientConn(ctx *gin.Context, validOrigins []string) (*websocket.Conn, error) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			if len(validOrigins) == 0 {
				return true
			}

			origin := req.Header.Get("Origin")
			for _, valid := range validOrigins {
				if strings.HasPrefix(origin, valid) {
					return true
				}
			}

			return false
		},
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		return nil, errors.Join(err, errUpgrader)
	}

	return conn, nil
}
