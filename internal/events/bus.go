package events

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

var (
	_ sdk.Bus      = (*Bus)(nil)
	_ sdk.AnyHooks = (*Bus)(nil)
)

type hook struct {
	id       uint64
	priority int
	name     string
	handler  sdk.Handler
}

// Bus es el registro de hooks del kernel. Emit corre los handlers en la
// goroutine que emite, ordenados por prioridad y luego por orden de registro.
type Bus struct {
	log *zap.Logger

	mu    sync.RWMutex
	seq   uint64
	hooks map[string][]hook
	any   []hook
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:   log,
		hooks: make(map[string][]hook),
	}
}

func (b *Bus) Register(event string, h sdk.Handler, opts sdk.HookOptions) func() {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.hooks[event] = append(b.hooks[event], hook{id: id, priority: opts.Priority, name: opts.Name, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.hooks[event] = removeHook(b.hooks[event], id)
			if len(b.hooks[event]) == 0 {
				delete(b.hooks, event)
			}
			b.mu.Unlock()
		})
	}
}

func (b *Bus) RegisterAny(h sdk.Handler, opts sdk.HookOptions) func() {
	b.mu.Lock()
	b.seq++
	id := b.seq
	b.any = append(b.any, hook{id: id, priority: opts.Priority, name: opts.Name, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			b.any = removeHook(b.any, id)
			b.mu.Unlock()
		})
	}
}

// Emit devuelve el primer resultado distinto de continue. Un handler que
// entra en pánico se loguea y no corta la cadena.
func (b *Bus) Emit(ctx context.Context, event string, data map[string]any) sdk.HookResult {
	for _, h := range b.snapshot(event) {
		res := b.run(ctx, h, event, data)
		if res.Action != "" && res.Action != sdk.ActionContinue {
			return res
		}
	}
	return sdk.Continue()
}

// Publish emite un evento ya armado
func (b *Bus) Publish(ev sdk.Event) {
	b.Emit(context.Background(), ev.Type, ev.Data)
}

// Names devuelve los nombres de los hooks que correrían para event, en orden
func (b *Bus) Names(event string) []string {
	hs := b.snapshot(event)
	out := make([]string, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.name)
	}
	return out
}

func (b *Bus) run(ctx context.Context, h hook, event string, data map[string]any) (res sdk.HookResult) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("hook panic",
				zap.String("event", event),
				zap.String("hook", h.name),
				zap.Error(fmt.Errorf("%v", r)))
			res = sdk.Continue()
		}
	}()
	return h.handler(ctx, event, data)
}

func (b *Bus) snapshot(event string) []hook {
	b.mu.RLock()
	hs := make([]hook, 0, len(b.hooks[event])+len(b.any))
	hs = append(hs, b.hooks[event]...)
	hs = append(hs, b.any...)
	b.mu.RUnlock()

	slices.SortStableFunc(hs, func(a, c hook) int {
		if a.priority != c.priority {
			return a.priority - c.priority
		}
		return int(a.id) - int(c.id)
	})
	return hs
}

func removeHook(hs []hook, id uint64) []hook {
	return slices.DeleteFunc(hs, func(h hook) bool { return h.id == id })
}
