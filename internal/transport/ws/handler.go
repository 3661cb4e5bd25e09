package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/transport"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingEvery    = 30 * time.Second
)

var _ sdk.Capability = (*Handler)(nil)

// Handler es a la vez el endpoint websocket y la capability que lo alimenta
type Handler struct {
	log *zap.Logger
	fan *transport.Fanout
	up  websocket.Upgrader
}

func NewHandler(log *zap.Logger, buffer int) *Handler {
	return &Handler{
		log: log,
		fan: transport.NewFanout(buffer),
		up:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

func (h *Handler) Invoke(_ context.Context, event string, data map[string]any) error {
	_, dropped := h.fan.Publish(transport.NewEnvelope(event, data))
	if dropped > 0 {
		h.log.Debug("ws clients behind, event dropped",
			zap.String("event", event),
			zap.Int("clients", dropped))
	}
	return nil
}

func (h *Handler) Clients() int { return h.fan.Len() }

func (h *Handler) Close() { h.fan.Close() }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.up.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}

	id, ch := h.fan.Subscribe()
	log := h.log.With(zap.String("client", id))
	log.Debug("ws client connected", zap.String("remote", r.RemoteAddr))

	// escritor: empuja eventos al cliente
	go func() {
		ping := time.NewTicker(pingEvery)
		defer func() {
			ping.Stop()
			h.fan.Unsubscribe(id)
			_ = conn.Close()
		}()
		for {
			select {
			case env, ok := <-ch:
				if !ok {
					_ = conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
						time.Now().Add(writeTimeout))
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				// si el cliente se fue, WriteJSON devuelve error y salimos
				if err := conn.WriteJSON(env); err != nil {
					log.Debug("ws write error", zap.Error(err))
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					return
				}
			}
		}
	}()

	// lector mínimo para detectar cierre del cliente (control frames)
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			// cualquier error de lectura implica cierre del lado cliente
			h.fan.Unsubscribe(id)
			log.Debug("ws client disconnected")
			return
		}
	}
}
