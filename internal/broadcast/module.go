package broadcast

import (
	"errors"
	"sync"

	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

// Name es el nombre con que el host monta el módulo
const Name = "event-broadcast"

// Mount arma un broadcaster con la config del módulo en sctx, lo engancha al
// bus de la sesión y devuelve el cleanup que lo desengancha.
func Mount(sctx sdk.Context, opts ...Option) (*Broadcaster, func(), error) {
	if sctx == nil || sctx.Bus() == nil {
		return nil, nil, errors.New("broadcast: session has no event bus")
	}
	cfg, err := DecodeConfig(sctx.Config())
	if err != nil {
		return nil, nil, err
	}

	log := sctx.Log()
	if log == nil {
		log = zap.NewNop()
	}
	b := New(sctx.Capabilities(), cfg, log, opts...)
	b.RegisterHandlers(sctx.Bus())
	log.Info("event broadcast module mounted", zap.String("capability", b.CapabilityName()))

	cleanup := func() {
		b.UnregisterHandlers()
		log.Info("event broadcast module cleanup complete")
	}
	return b, cleanup, nil
}

// Module adapta Mount a sdk.Plugin para el plugin manager
type Module struct {
	opts []Option

	mu      sync.Mutex
	b       *Broadcaster
	cleanup func()
}

func NewModule(opts ...Option) *Module { return &Module{opts: opts} }

func (m *Module) Init(ctx sdk.Context) error {
	b, cleanup, err := Mount(ctx, m.opts...)
	if err != nil {
		return err
	}
	m.mu.Lock()
	prev := m.cleanup
	m.b, m.cleanup = b, cleanup
	m.mu.Unlock()
	if prev != nil {
		prev()
	}
	return nil
}

func (m *Module) Stop() error {
	m.mu.Lock()
	cleanup := m.cleanup
	m.b, m.cleanup = nil, nil
	m.mu.Unlock()
	if cleanup != nil {
		cleanup()
	}
	return nil
}

// Broadcaster devuelve el broadcaster montado, o nil
func (m *Module) Broadcaster() *Broadcaster {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.b
}
