// Package console es el transporte para correr sin UI: cada evento reenviado
// se vuelve una línea de log estructurada.
package console

import (
	"context"

	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Printer struct {
	log   *zap.Logger
	level zapcore.Level
}

var _ sdk.Capability = (*Printer)(nil)

func New(log *zap.Logger, level zapcore.Level) *Printer {
	return &Printer{log: log.Named("console"), level: level}
}

func (p *Printer) Invoke(_ context.Context, event string, data map[string]any) error {
	if ce := p.log.Check(p.level, "kernel event"); ce != nil {
		ce.Write(zap.String("event", event), zap.Any("data", data))
	}
	return nil
}
