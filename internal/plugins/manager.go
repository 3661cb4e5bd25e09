package plugins

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/config"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

// Factory crea una instancia nueva del módulo en cada montaje
type Factory func() sdk.Plugin

type loaded struct {
	name   string
	plugin sdk.Plugin
}

// Manager monta los módulos in-process declarados en la config
type Manager struct {
	log  *zap.Logger
	bus  sdk.Bus
	caps sdk.Capabilities

	mu        sync.RWMutex
	factories map[string]Factory
	plugins   []loaded
}

func NewManager(log *zap.Logger, bus sdk.Bus, caps sdk.Capabilities) *Manager {
	return &Manager{
		log:       log,
		bus:       bus,
		caps:      caps,
		factories: make(map[string]Factory),
	}
}

// Provide hace disponible un módulo bajo name
func (m *Manager) Provide(name string, f Factory) {
	m.mu.Lock()
	m.factories[name] = f
	m.mu.Unlock()
}

// Load monta cada módulo en orden. Un módulo que falla se loguea y no
// impide montar el resto; los errores se devuelven juntos.
func (m *Manager) Load(modules []config.Module) error {
	var errs []error
	for _, mod := range modules {
		if err := m.loadPlugin(mod); err != nil {
			m.log.Error("failed to load plugin",
				zap.String("name", mod.Name),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", mod.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) loadPlugin(mod config.Module) error {
	m.mu.RLock()
	factory, ok := m.factories[mod.Name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown module %q", mod.Name)
	}

	plug := factory()
	ctx := newPluginContext(m.log.With(zap.String("plugin", mod.Name)), m.bus, m.caps, mod.Config)
	if err := plug.Init(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.plugins = append(m.plugins, loaded{name: mod.Name, plugin: plug})
	m.mu.Unlock()

	m.bus.Emit(context.Background(), "plugin:loaded", map[string]any{
		"name": mod.Name,
		"time": time.Now().Unix(),
	})

	m.log.Info("plugin loaded", zap.String("name", mod.Name))
	return nil
}

// Reload desmonta todo y vuelve a montar con la nueva lista
func (m *Manager) Reload(modules []config.Module) error {
	m.Shutdown()
	err := m.Load(modules)
	if err != nil {
		m.log.Warn("plugin reload failed", zap.Error(err))
	}
	m.bus.Emit(context.Background(), "plugins:reloaded", map[string]any{
		"time": time.Now().Unix(),
	})
	return err
}

// Shutdown detiene los módulos en orden inverso al de montaje
func (m *Manager) Shutdown() {
	m.mu.Lock()
	plugins := m.plugins
	m.plugins = nil
	m.mu.Unlock()

	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.plugin.Stop(); err != nil {
			m.log.Warn("plugin stop failed", zap.String("name", p.name), zap.Error(err))
		}
	}
}

func (m *Manager) Loaded() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		out = append(out, p.name)
	}
	return out
}
