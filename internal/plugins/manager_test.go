package plugins

import (
	"context"
	"errors"
	"testing"

	"github.com/EchoPBX/echopbx-broadcast/internal/broadcast"
	"github.com/EchoPBX/echopbx-broadcast/internal/capabilities"
	"github.com/EchoPBX/echopbx-broadcast/internal/config"
	"github.com/EchoPBX/echopbx-broadcast/internal/events"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePlugin struct {
	initErr error
	cfg     map[string]any
	stopped *[]string
	name    string
}

func (p *fakePlugin) Init(ctx sdk.Context) error {
	p.cfg = ctx.Config()
	return p.initErr
}

func (p *fakePlugin) Stop() error {
	*p.stopped = append(*p.stopped, p.name)
	return nil
}

func newManager(t *testing.T) (*Manager, *events.Bus, *capabilities.Registry) {
	t.Helper()
	bus := events.NewBus(nil)
	caps := capabilities.NewRegistry(nil)
	return NewManager(zap.NewNop(), bus, caps), bus, caps
}

func TestManager_LoadEmitsPluginLoaded(t *testing.T) {
	m, bus, _ := newManager(t)
	var stopped []string
	var got *fakePlugin
	m.Provide("a", func() sdk.Plugin {
		got = &fakePlugin{name: "a", stopped: &stopped}
		return got
	})

	var loadedEvents []string
	bus.Register("plugin:loaded", func(_ context.Context, _ string, data map[string]any) sdk.HookResult {
		loadedEvents = append(loadedEvents, data["name"].(string))
		return sdk.Continue()
	}, sdk.HookOptions{})

	err := m.Load([]config.Module{{Name: "a", Config: map[string]any{"k": "v"}}})
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, m.Loaded())
	require.Equal(t, []string{"a"}, loadedEvents)
	require.Equal(t, "v", got.cfg["k"])
}

func TestManager_LoadKeepsGoingOnFailure(t *testing.T) {
	m, _, _ := newManager(t)
	var stopped []string
	m.Provide("bad", func() sdk.Plugin {
		return &fakePlugin{name: "bad", stopped: &stopped, initErr: errors.New("boom")}
	})
	m.Provide("good", func() sdk.Plugin { return &fakePlugin{name: "good", stopped: &stopped} })

	err := m.Load([]config.Module{{Name: "bad"}, {Name: "missing"}, {Name: "good"}})
	require.Error(t, err)
	require.ErrorContains(t, err, "boom")
	require.ErrorContains(t, err, `unknown module "missing"`)
	require.Equal(t, []string{"good"}, m.Loaded())
}

func TestManager_ShutdownReverseOrder(t *testing.T) {
	m, _, _ := newManager(t)
	var stopped []string
	m.Provide("a", func() sdk.Plugin { return &fakePlugin{name: "a", stopped: &stopped} })
	m.Provide("b", func() sdk.Plugin { return &fakePlugin{name: "b", stopped: &stopped} })

	require.NoError(t, m.Load([]config.Module{{Name: "a"}, {Name: "b"}}))
	m.Shutdown()

	require.Equal(t, []string{"b", "a"}, stopped)
	require.Empty(t, m.Loaded())
}

func TestManager_MountsBroadcaster(t *testing.T) {
	m, bus, caps := newManager(t)
	m.Provide(broadcast.Name, func() sdk.Plugin { return broadcast.NewModule() })

	var got []string
	caps.Register("my_broadcast", sdk.CapabilityFunc(func(_ context.Context, event string, _ map[string]any) error {
		got = append(got, event)
		return nil
	}))

	require.NoError(t, m.Load([]config.Module{{
		Name: broadcast.Name,
		Config: map[string]any{
			"events":          []any{"tool:*"},
			"capability_name": "my_broadcast",
		},
	}}))

	bus.Emit(context.Background(), "tool:pre", map[string]any{"tool_name": "bash"})
	bus.Emit(context.Background(), "session:start", nil)
	require.Equal(t, []string{"tool:pre"}, got)

	// tras el reload con otra config el handler anterior ya no está
	require.NoError(t, m.Reload([]config.Module{{
		Name:   broadcast.Name,
		Config: map[string]any{"events": []any{"session:start"}, "capability_name": "my_broadcast"},
	}}))
	got = nil
	bus.Emit(context.Background(), "tool:pre", nil)
	bus.Emit(context.Background(), "session:start", nil)
	require.Equal(t, []string{"session:start"}, got)
}
