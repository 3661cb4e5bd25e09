package httpserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/config"
	"github.com/EchoPBX/echopbx-broadcast/internal/jwt"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

const maxEmitBody = 1 << 20

// Deps son los componentes del host que el server expone. Los handlers nil
// dejan su ruta sin montar.
type Deps struct {
	Bus          sdk.Bus
	Capabilities interface{ Names() []string }
	Plugins      interface{ Loaded() []string }
	WebSocket    http.Handler
	SSE          http.Handler
	Metrics      http.Handler
}

type Server struct {
	log *zap.Logger
	d   Deps
	r   *chi.Mux

	mu  sync.RWMutex
	cfg *config.Config
	jwt *jwt.Validator
}

func New(cfg *config.Config, log *zap.Logger, d Deps) (*Server, error) {
	v, err := jwt.NewValidator(cfg.Auth.JWTPublicKeys, cfg.Auth.Issuer, cfg.Auth.Audience)
	if err != nil {
		return nil, err
	}
	if !v.Enabled() {
		log.Warn("no jwt public keys configured, /v1 endpoints are open")
	}
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))
	s := &Server{cfg: cfg, log: log, d: d, r: r, jwt: v}
	s.routes()
	return s, nil
}

func (s *Server) Router() http.Handler { return s.r }

// Reload cambia la config y las claves JWT; si las claves no cargan se
// mantienen las anteriores
func (s *Server) Reload(cfg *config.Config) {
	v, err := jwt.NewValidator(cfg.Auth.JWTPublicKeys, cfg.Auth.Issuer, cfg.Auth.Audience)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if err != nil {
		s.log.Warn("jwt reload failed, keeping previous keys", zap.Error(err))
		return
	}
	s.jwt = v
}

func (s *Server) routes() {
	s.r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if s.d.Metrics != nil {
		s.r.Method(http.MethodGet, "/metrics", s.d.Metrics)
	}

	s.r.Get("/v1/info", s.auth(func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		capName := s.cfg.Transports.Capability
		s.mu.RUnlock()
		resp := map[string]any{
			"name":       "echopbx-broadcast",
			"time":       time.Now().UTC(),
			"capability": capName,
		}
		if s.d.Plugins != nil {
			resp["modules"] = s.d.Plugins.Loaded()
		}
		writeJSON(w, http.StatusOK, resp)
	}))

	s.r.Get("/v1/capabilities", s.auth(func(w http.ResponseWriter, r *http.Request) {
		names := []string{}
		if s.d.Capabilities != nil {
			names = s.d.Capabilities.Names()
		}
		writeJSON(w, http.StatusOK, names)
	}))

	s.r.Post("/v1/emit", s.auth(s.emit))

	if s.d.WebSocket != nil {
		s.r.Method(http.MethodGet, "/v1/events", s.auth(s.d.WebSocket.ServeHTTP))
	}
	if s.d.SSE != nil {
		s.r.Method(http.MethodGet, "/v1/events/stream", s.auth(s.d.SSE.ServeHTTP))
	}
}

// emit dispara un evento en el bus del kernel, útil para probar el cableado
func (s *Server) emit(w http.ResponseWriter, r *http.Request) {
	if s.d.Bus == nil {
		http.Error(w, "no bus", http.StatusServiceUnavailable)
		return
	}
	var ev sdk.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEmitBody)).Decode(&ev); err != nil {
		http.Error(w, "invalid event: "+err.Error(), http.StatusBadRequest)
		return
	}
	if ev.Type == "" {
		http.Error(w, "missing event type", http.StatusBadRequest)
		return
	}
	res := s.d.Bus.Emit(r.Context(), ev.Type, ev.Data)
	s.log.Debug("event emitted over http", zap.String("event", ev.Type), zap.String("action", string(res.Action)))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		v := s.jwt
		s.mu.RUnlock()
		if !v.Enabled() {
			next(w, r)
			return
		}

		tok := r.Header.Get("Authorization")
		if tok == "" {
			// los navegadores no pueden mandar headers en websocket/EventSource
			tok = r.URL.Query().Get("access_token")
		}
		if tok == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		tok = strings.TrimPrefix(tok, "Bearer ")
		if _, err := v.Verify(tok); err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
