// Package capabilities es el registro del host de callbacks con nombre que
// los módulos buscan en tiempo de ejecución.
package capabilities

import (
	"sort"
	"sync"

	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"go.uber.org/zap"
)

var _ sdk.Capabilities = (*Registry)(nil)

type entry struct {
	id  uint64
	cap sdk.Capability
}

type Registry struct {
	log *zap.Logger

	mu   sync.RWMutex
	seq  uint64
	caps map[string]entry
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log, caps: make(map[string]entry)}
}

// Register reemplaza cualquier capability previa con el mismo nombre. El func
// devuelto solo la quita si sigue siendo la misma registración.
func (r *Registry) Register(name string, c sdk.Capability) func() {
	r.mu.Lock()
	r.seq++
	id := r.seq
	_, replaced := r.caps[name]
	r.caps[name] = entry{id: id, cap: c}
	r.mu.Unlock()

	r.log.Info("capability registered", zap.String("name", name), zap.Bool("replaced", replaced))

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if e, ok := r.caps[name]; ok && e.id == id {
				delete(r.caps, name)
			}
		})
	}
}

func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.caps, name)
	r.mu.Unlock()
}

func (r *Registry) Capability(name string) (sdk.Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.caps[name]
	if !ok {
		return nil, false
	}
	return e.cap, true
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.caps))
	for name := range r.caps {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}
