package logging

import (
	"fmt"

	"go.uber.org/zap"
)

type Cfg struct {
	Level string
	JSON  bool
}

// New arma el logger de producción; en consola usa el encoder legible
func New(c Cfg) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if !c.JSON {
		cfg.Encoding = "console"
	}
	if c.Level != "" {
		if err := cfg.Level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", c.Level, err)
		}
	}
	return cfg.Build()
}

// Must es New para main: cae a un logger de producción si la config es inválida
func Must(c Cfg) *zap.Logger {
	l, err := New(c)
	if err != nil {
		l = zap.Must(zap.NewProduction())
		l.Warn("invalid logging config, using defaults", zap.Error(err))
	}
	return l
}
