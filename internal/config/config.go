package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// DefaultPath se usa cuando ECHOPBX_CONFIG no está definido
const DefaultPath = "/etc/echopbx/broadcast.yaml"

type Config struct {
	HTTP struct {
		Bind string `yaml:"bind" env:"ECHOPBX_HTTP_BIND"`
		Port int    `yaml:"port" env:"ECHOPBX_HTTP_PORT"`
		TLS  struct {
			Enabled bool   `yaml:"enabled" env:"ECHOPBX_TLS_ENABLED"`
			Cert    string `yaml:"cert" env:"ECHOPBX_TLS_CERT"`
			Key     string `yaml:"key" env:"ECHOPBX_TLS_KEY"`
		} `yaml:"tls"`
	} `yaml:"http"`
	Auth struct {
		JWTPublicKeys []string `yaml:"jwt_public_keys" env:"ECHOPBX_JWT_PUBLIC_KEYS" envSeparator:","` // rutas a PEM
		Issuer        string   `yaml:"issuer" env:"ECHOPBX_JWT_ISSUER"`
		Audience      string   `yaml:"audience" env:"ECHOPBX_JWT_AUDIENCE"`
	} `yaml:"auth"`
	Logging struct {
		Level string `yaml:"level" env:"ECHOPBX_LOG_LEVEL"`
		JSON  bool   `yaml:"json" env:"ECHOPBX_LOG_JSON"`
	} `yaml:"logging"`
	Upstream struct {
		URL          string        `yaml:"url" env:"ECHOPBX_UPSTREAM_URL"` // ws://kernel:9000/events
		Insecure     bool          `yaml:"insecure" env:"ECHOPBX_UPSTREAM_INSECURE"`
		Fake         bool          `yaml:"fake" env:"ECHOPBX_UPSTREAM_FAKE"`
		FakeInterval time.Duration `yaml:"fake_interval" env:"ECHOPBX_UPSTREAM_FAKE_INTERVAL"`
	} `yaml:"upstream"`
	Transports Transports `yaml:"transports"`
	Modules    []Module   `yaml:"modules"` // ausente monta event-broadcast; [] no monta nada
}

// Transports elige qué transportes se registran bajo Capability
type Transports struct {
	Capability string `yaml:"capability" env:"ECHOPBX_CAPABILITY"`
	WebSocket  struct {
		Enabled bool `yaml:"enabled" env:"ECHOPBX_WS_ENABLED"`
		Buffer  int  `yaml:"buffer"`
	} `yaml:"websocket"`
	SSE struct {
		Enabled bool `yaml:"enabled" env:"ECHOPBX_SSE_ENABLED"`
		Buffer  int  `yaml:"buffer"`
	} `yaml:"sse"`
	Console struct {
		Enabled bool `yaml:"enabled" env:"ECHOPBX_CONSOLE_ENABLED"`
	} `yaml:"console"`
	Redis struct {
		Enabled  bool          `yaml:"enabled" env:"ECHOPBX_REDIS_ENABLED"`
		Addr     string        `yaml:"addr" env:"ECHOPBX_REDIS_ADDR"`
		Password string        `yaml:"password" env:"ECHOPBX_REDIS_PASS"`
		DB       int           `yaml:"db" env:"ECHOPBX_REDIS_DB"`
		Stream   string        `yaml:"stream" env:"ECHOPBX_REDIS_STREAM"`
		MaxLen   int64         `yaml:"max_len"`
		Timeout  time.Duration `yaml:"timeout" env:"ECHOPBX_REDIS_TIMEOUT"`
	} `yaml:"redis"`
}

// Module es un módulo in-process a montar, con su config libre
type Module struct {
	Name   string         `yaml:"name"`
	Config map[string]any `yaml:"config"`
}

var ErrNoUpstream = errors.New("upstream url is required unless upstream.fake is set")

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse aplica defaults, luego variables de entorno y por último valida
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Bind == "" {
		c.HTTP.Bind = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Upstream.FakeInterval == 0 {
		c.Upstream.FakeInterval = 2 * time.Second
	}
	if c.Transports.Capability == "" {
		c.Transports.Capability = "broadcast"
	}
	if c.Transports.WebSocket.Buffer == 0 {
		c.Transports.WebSocket.Buffer = 64
	}
	if c.Transports.SSE.Buffer == 0 {
		c.Transports.SSE.Buffer = 64
	}
	if c.Transports.Redis.Addr == "" {
		c.Transports.Redis.Addr = "localhost:6379"
	}
	if c.Transports.Redis.Stream == "" {
		c.Transports.Redis.Stream = "echopbx:events"
	}
	if c.Transports.Redis.Timeout == 0 {
		c.Transports.Redis.Timeout = 2 * time.Second
	}
	if c.Modules == nil {
		c.Modules = []Module{{Name: "event-broadcast"}}
	}
}

func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port: %d", c.HTTP.Port)
	}
	if c.HTTP.TLS.Enabled && (c.HTTP.TLS.Cert == "" || c.HTTP.TLS.Key == "") {
		return errors.New("tls enabled without cert/key")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	if !c.Upstream.Fake && c.Upstream.URL == "" {
		return ErrNoUpstream
	}
	if c.Upstream.FakeInterval < 0 {
		return fmt.Errorf("invalid upstream fake_interval: %s", c.Upstream.FakeInterval)
	}
	if c.Transports.Redis.Timeout < 0 {
		return fmt.Errorf("invalid redis timeout: %s", c.Transports.Redis.Timeout)
	}
	seen := make(map[string]bool, len(c.Modules))
	for i, m := range c.Modules {
		if m.Name == "" {
			return fmt.Errorf("module %d has no name", i)
		}
		if seen[m.Name] {
			return fmt.Errorf("module %q listed twice", m.Name)
		}
		seen[m.Name] = true
	}
	return nil
}
