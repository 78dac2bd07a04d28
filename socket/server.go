package socket

import (
	"roomie_server/apperrors"
	"roomie_server/helpers"
	"roomie_server/logging"

	socketio "github.com/googollee/go-socket.io"
)

const eventSubscribeError = "subscribe_error"

// identity reads the caller from the handshake header, falling back to the
// uid query parameter for browser clients that cannot set headers.
func identity(c socketio.Conn) string {
	if uid := c.RemoteHeader().Get(helpers.UserIDHeader); uid != "" {
		return uid
	}
	u := c.URL()
	return u.Query().Get("uid")
}

// NewSocketServer initializes and returns a new Socket.IO server backed by hub
func NewSocketServer(hub *Hub, logger logging.Logger) *socketio.Server {
	if logger == nil {
		logger = logging.Nop()
	}
	server := socketio.NewServer(nil)

	server.OnConnect("/", func(c socketio.Conn) error {
		uid := identity(c)
		if uid == "" {
			return apperrors.ErrUnauthorized
		}
		c.SetContext(uid)
		hub.Connect(c.ID())
		logger.Info(hub.ctx, "socket connected", "conn", c.ID(), "userId", uid)
		return nil
	})

	server.OnEvent("/", "subscribe", func(c socketio.Conn, req Request) {
		uid, _ := c.Context().(string)
		if err := hub.Subscribe(c, uid, req); err != nil {
			logger.Warn(hub.ctx, "subscribe failed", "conn", c.ID(), "kind", req.Kind, "error", err)
			c.Emit(eventSubscribeError, apperrors.From(err))
		}
	})

	server.OnEvent("/", "unsubscribe", func(c socketio.Conn, req Request) {
		hub.Unsubscribe(c.ID(), req)
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		if c == nil {
			logger.Warn(hub.ctx, "socket error", "error", err)
			return
		}
		logger.Warn(hub.ctx, "socket error", "conn", c.ID(), "error", err)
	})

	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		hub.Drop(c.ID())
		logger.Info(hub.ctx, "socket disconnected", "conn", c.ID(), "reason", reason)
	})

	return server
}
