// Package ws serves a session controller over a websocket: client frames
// become controller events and every rendered view is pushed back as JSON.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Vasu1712/scenyx-dms/internal/auth"
	"github.com/Vasu1712/scenyx-dms/internal/logging"
	"github.com/Vasu1712/scenyx-dms/internal/session"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Handler upgrades authenticated requests. It expects auth.Middleware in front
// of it.
type Handler struct {
	Directory  session.Directory
	Registry   session.Registry
	Messages   session.Messages
	SendBuffer int

	upgrader websocket.Upgrader
}

// NewHandler allows any origin when allowedOrigins is empty or contains "*".
func NewHandler(dir session.Directory, registry session.Registry, messages session.Messages, allowedOrigins []string, sendBuffer int) *Handler {
	h := &Handler{
		Directory:  dir,
		Registry:   registry,
		Messages:   messages,
		SendBuffer: sendBuffer,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || len(allowedOrigins) == 0 ||
				lo.Contains(allowedOrigins, "*") || lo.Contains(allowedOrigins, origin)
		},
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, err := auth.Require(r.Context())
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	logger := logging.FromContext(r.Context())

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Info("websocket upgrade failed", slog.String(logging.ErrorMsgField, err.Error()))
		return
	}
	conn := NewConnection(id.ID, wsConn, h.SendBuffer)
	conn.Start()
	logger = logger.With(slog.String("connectionID", conn.ID))
	logger.Info("websocket connected")

	renderer := session.RendererFunc(func(v session.View) {
		sendFrame(conn, ServerFrame{Type: frameView, View: &v}, logger)
	})
	controller := session.NewController(h.Directory, h.Registry, h.Messages, renderer, logger)

	ctx, cancel := context.WithCancel(logging.WithLogger(r.Context(), logger))
	done := make(chan struct{})
	go func() {
		defer close(done)
		controller.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
		conn.Close(websocket.CloseNormalClosure, "")
		logger.Info("websocket disconnected")
	}()

	// Server shutdown does not close hijacked connections.
	go func() {
		select {
		case <-r.Context().Done():
			conn.Close(websocket.CloseGoingAway, "server shutting down")
		case <-conn.Done():
		}
	}()

	controller.SignIn(id)
	h.readLoop(conn, controller, logger)
}

func (h *Handler) readLoop(conn *Connection, controller Controller, logger *slog.Logger) {
	conn.prepareRead()
	for {
		var frame ClientFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Info("websocket read failed", slog.String(logging.ErrorMsgField, err.Error()))
			}
			return
		}
		if err := dispatch(controller, frame); err != nil {
			sendFrame(conn, ServerFrame{Type: frameError, Error: err.Error()}, logger)
		}
	}
}

func sendFrame(conn *Connection, frame ServerFrame, logger *slog.Logger) {
	payload, err := json.Marshal(frame)
	if err != nil {
		logger.Error("failed to encode frame", slog.String(logging.ErrorMsgField, err.Error()))
		return
	}
	if err := conn.Send(payload); err != nil {
		logger.Debug("dropping frame", slog.String(logging.ErrorMsgField, err.Error()))
	}
}
