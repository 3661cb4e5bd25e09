package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/transport"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

const keepAliveEvery = 15 * time.Second

var _ sdk.Capability = (*Handler)(nil)

// Handler sirve los eventos como text/event-stream, un "event:" por tipo
type Handler struct {
	log *zap.Logger
	fan *transport.Fanout
}

func NewHandler(log *zap.Logger, buffer int) *Handler {
	return &Handler{log: log, fan: transport.NewFanout(buffer)}
}

func (h *Handler) Invoke(_ context.Context, event string, data map[string]any) error {
	_, dropped := h.fan.Publish(transport.NewEnvelope(event, data))
	if dropped > 0 {
		h.log.Debug("sse clients behind, event dropped",
			zap.String("event", event),
			zap.Int("clients", dropped))
	}
	return nil
}

func (h *Handler) Clients() int { return h.fan.Len() }

func (h *Handler) Close() { h.fan.Close() }

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := h.fan.Subscribe()
	defer h.fan.Unsubscribe(id)
	log := h.log.With(zap.String("client", id))
	log.Debug("sse client connected", zap.String("remote", r.RemoteAddr))

	keepAlive := time.NewTicker(keepAliveEvery)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Debug("sse client disconnected")
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case env, ok := <-ch:
			if !ok {
				return
			}
			if err := writeEvent(w, env); err != nil {
				log.Debug("sse write error", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

// un salto de línea en el nombre partiría el frame en dos
var fieldSanitizer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func writeEvent(w http.ResponseWriter, env transport.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", env.ID, fieldSanitizer.Replace(env.Type), b)
	return err
}
