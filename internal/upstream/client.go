// Package upstream alimenta el bus de la sesión: lee los eventos del kernel de
// un websocket upstream, o reproduce una sesión sintética en modo fake.
package upstream

import (
	"context"
	"crypto/tls"
	"net/http"
	"sync"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/config"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	dialBackoff      = 2 * time.Second
	reconnectBackoff = 1 * time.Second
)

// FakeSession es la secuencia que emite el modo fake en cada tick
var FakeSession = []sdk.Event{
	{Type: "session:start", Data: map[string]any{"source": "fake"}},
	{Type: "prompt:submit", Data: map[string]any{"prompt": "hello"}},
	{Type: "provider:request", Data: map[string]any{"provider": "fake"}},
	{Type: "content_block:start", Data: map[string]any{"index": 0}},
	{Type: "content_block:delta", Data: map[string]any{"index": 0, "content": "Hello"}},
	{Type: "content_block:end", Data: map[string]any{"index": 0}},
	{Type: "tool:pre", Data: map[string]any{"tool_name": "bash"}},
	{Type: "tool:post", Data: map[string]any{"tool_name": "bash"}},
	{Type: "orchestrator:complete", Data: map[string]any{}},
	{Type: "session:end", Data: map[string]any{}},
}

type Client struct {
	log *zap.Logger
	bus sdk.Bus

	mu   sync.Mutex
	cfg  *config.Config
	conn *websocket.Conn
}

func NewClient(cfg *config.Config, log *zap.Logger, bus sdk.Bus) *Client {
	return &Client{cfg: cfg, log: log, bus: bus}
}

func (c *Client) config() *config.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Run bloquea hasta que ctx se cancela
func (c *Client) Run(ctx context.Context) {
	if c.config().Upstream.Fake {
		c.runFake(ctx)
		return
	}
	for ctx.Err() == nil {
		cfg := c.config()
		d := websocket.Dialer{TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Upstream.Insecure}}
		conn, _, err := d.DialContext(ctx, cfg.Upstream.URL, http.Header{"User-Agent": {"echopbx-broadcast"}})
		if err != nil {
			c.log.Warn("upstream dial failed", zap.String("url", cfg.Upstream.URL), zap.Error(err))
			sleep(ctx, dialBackoff)
			continue
		}
		c.setConn(conn)
		c.log.Info("upstream connected", zap.String("url", cfg.Upstream.URL))
		c.read(ctx, conn)
		c.setConn(nil)
		_ = conn.Close()
		sleep(ctx, reconnectBackoff)
	}
}

func (c *Client) read(ctx context.Context, conn *websocket.Conn) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		var ev sdk.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() == nil {
				c.log.Warn("upstream read", zap.Error(err))
			}
			return
		}
		if ev.Type == "" {
			c.log.Debug("upstream frame without type, ignored")
			continue
		}
		c.bus.Emit(ctx, ev.Type, ev.Data)
	}
}

func (c *Client) runFake(ctx context.Context) {
	t := time.NewTicker(c.config().Upstream.FakeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			for _, ev := range FakeSession {
				data := make(map[string]any, len(ev.Data)+1)
				for k, v := range ev.Data {
					data[k] = v
				}
				data["ts"] = now.Unix()
				c.bus.Emit(ctx, ev.Type, data)
			}
		}
	}
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// Reload toma efecto en la próxima reconexión
func (c *Client) Reload(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
