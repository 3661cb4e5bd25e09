package plugins

import (
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

type pluginContext struct {
	log    *zap.Logger
	bus    sdk.Bus
	caps   sdk.Capabilities
	config map[string]any
}

func newPluginContext(log *zap.Logger, bus sdk.Bus, caps sdk.Capabilities, cfg map[string]any) sdk.Context {
	if cfg == nil {
		cfg = map[string]any{}
	}
	return &pluginContext{log: log, bus: bus, caps: caps, config: cfg}
}

func (c *pluginContext) Log() *zap.Logger               { return c.log }
func (c *pluginContext) Bus() sdk.Bus                   { return c.bus }
func (c *pluginContext) Capabilities() sdk.Capabilities { return c.caps }
func (c *pluginContext) Config() map[string]any         { return c.config }
