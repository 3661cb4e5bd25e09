// Package broadcast reenvía los eventos de ciclo de vida del kernel al
// transporte que el host registra como capability (websocket, SSE, consola).
// Solo observa: nunca corta la cadena de hooks y un error del transporte
// nunca llega a quien emitió el evento.
package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

// HookPriority es baja a propósito: el broadcast corre después del resto de los hooks
const HookPriority = 1000

// sufijos que se registran por cada comodín cuando el bus no acepta hooks globales
var wildcardSuffixes = []string{"start", "delta", "end", "pre", "post", "error", "complete"}

type Option func(*Broadcaster)

func WithMetrics(m *Metrics) Option {
	return func(b *Broadcaster) { b.metrics = m }
}

type Broadcaster struct {
	log      *zap.Logger
	caps     sdk.Capabilities
	patterns Patterns
	capName  string
	metrics  *Metrics

	mu         sync.Mutex
	unregister []func()
}

func New(caps sdk.Capabilities, cfg Config, log *zap.Logger, opts ...Option) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	b := &Broadcaster{
		log:      log,
		caps:     caps,
		patterns: NewPatterns(cfg.Events),
		capName:  cfg.CapabilityName,
	}
	for _, o := range opts {
		o(b)
	}
	b.log.Debug("broadcaster configured",
		zap.Int("patterns", b.patterns.Len()),
		zap.String("capability", b.capName))
	return b
}

func (b *Broadcaster) CapabilityName() string { return b.capName }
func (b *Broadcaster) Patterns() Patterns     { return b.patterns }

func (b *Broadcaster) Matches(event string) bool { return b.patterns.Match(event) }

// Handle es el handler de los hooks; siempre devuelve continue
func (b *Broadcaster) Handle(ctx context.Context, event string, data map[string]any) sdk.HookResult {
	pattern, ok := b.patterns.Matched(event)
	if !ok {
		b.metrics.observe("", OutcomeSkipped)
		return sdk.Continue()
	}

	var capability sdk.Capability
	if b.caps != nil {
		capability, _ = b.caps.Capability(b.capName)
	}
	if capability == nil {
		// normal cuando no hay ningún cliente conectado
		b.log.Debug("no capability registered, skipping broadcast",
			zap.String("capability", b.capName),
			zap.String("event", event))
		b.metrics.observe(pattern, OutcomeNoCapability)
		return sdk.Continue()
	}

	start := time.Now()
	err := invoke(ctx, capability, event, data)
	b.metrics.observeInvoke(b.capName, time.Since(start))
	if err != nil {
		b.log.Warn("failed to broadcast event",
			zap.String("event", event),
			zap.String("capability", b.capName),
			zap.Error(err))
		b.metrics.observe(pattern, OutcomeFailed)
		return sdk.Continue()
	}

	b.log.Debug("broadcast event", zap.String("event", event))
	b.metrics.observe(pattern, OutcomeForwarded)
	return sdk.Continue()
}

func invoke(ctx context.Context, c sdk.Capability, event string, data map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability panic: %v", r)
		}
	}()
	return c.Invoke(ctx, event, data)
}

// RegisterHandlers engancha Handle en hooks y devuelve cuántos handlers
// registró. Si hay comodines y el registro acepta hooks globales alcanza con
// uno solo; si no, cada evento exacto lleva su handler y cada comodín se
// expande sobre los sufijos habituales.
func (b *Broadcaster) RegisterHandlers(hooks sdk.Hooks) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	before := len(b.unregister)
	if anyHooks, ok := hooks.(sdk.AnyHooks); ok && len(b.patterns.Wildcards()) > 0 {
		b.unregister = append(b.unregister, anyHooks.RegisterAny(b.Handle, sdk.HookOptions{
			Priority: HookPriority,
			Name:     hookName("*"),
		}))
		b.log.Debug("registered catch-all broadcast handler",
			zap.Strings("patterns", b.patterns.List()))
	} else {
		for _, event := range b.handlerEvents() {
			b.unregister = append(b.unregister, hooks.Register(event, b.Handle, sdk.HookOptions{
				Priority: HookPriority,
				Name:     hookName(event),
			}))
			b.log.Debug("registered broadcast handler", zap.String("event", event))
		}
	}

	n := len(b.unregister) - before
	b.log.Info("event broadcast registered", zap.Int("handlers", n))
	return n
}

// UnregisterHandlers se puede llamar las veces que sea
func (b *Broadcaster) UnregisterHandlers() {
	b.mu.Lock()
	fns := b.unregister
	b.unregister = nil
	b.mu.Unlock()

	for _, fn := range fns {
		b.safeUnregister(fn)
	}
	b.log.Info("event broadcast handlers unregistered", zap.Int("handlers", len(fns)))
}

// Registered devuelve cuántos handlers siguen registrados
func (b *Broadcaster) Registered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unregister)
}

func (b *Broadcaster) safeUnregister(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("error unregistering handler", zap.Error(fmt.Errorf("%v", r)))
		}
	}()
	fn()
}

func (b *Broadcaster) handlerEvents() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ev string) {
		if _, ok := seen[ev]; ok {
			return
		}
		seen[ev] = struct{}{}
		out = append(out, ev)
	}
	for _, ev := range b.patterns.Exact() {
		add(ev)
	}
	for _, p := range b.patterns.Wildcards() {
		prefix := Prefix(p)
		for _, suffix := range wildcardSuffixes {
			add(prefix + suffix)
		}
	}
	return out
}

func hookName(event string) string { return "event-broadcast:" + event }
