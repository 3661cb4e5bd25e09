// Package transport tiene lo que comparten los transportes: el envelope de
// salida, el fan-out por canales hacia los clientes conectados y Multi, que
// reparte una llamada entre varios transportes.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/google/uuid"
)

// Envelope es lo que reciben los clientes por cada evento del kernel
type Envelope struct {
	ID   string         `json:"id"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
	Time time.Time      `json:"time"`
}

func NewEnvelope(event string, data map[string]any) Envelope {
	return Envelope{
		ID:   uuid.NewString(),
		Type: event,
		Data: data,
		Time: time.Now().UTC(),
	}
}

// Fanout reparte envelopes a los clientes suscriptos. Publish nunca bloquea:
// si el buffer de un cliente está lleno el envelope se descarta para ese cliente.
type Fanout struct {
	buffer int

	mu     sync.RWMutex
	subs   map[string]chan Envelope
	closed bool
}

func NewFanout(buffer int) *Fanout {
	if buffer <= 0 {
		buffer = 64
	}
	return &Fanout{buffer: buffer, subs: make(map[string]chan Envelope)}
}

func (f *Fanout) Subscribe() (string, <-chan Envelope) {
	id := uuid.NewString()
	ch := make(chan Envelope, f.buffer)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		close(ch)
		return id, ch
	}
	f.subs[id] = ch
	return id, ch
}

func (f *Fanout) Unsubscribe(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.subs[id]; ok {
		delete(f.subs, id)
		close(ch)
	}
}

// Publish devuelve a cuántos clientes se entregó y a cuántos no
func (f *Fanout) Publish(env Envelope) (delivered, dropped int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs {
		select {
		case ch <- env:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

func (f *Fanout) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}

// Multi invoca cada capability en orden y junta los errores
type Multi []sdk.Capability

func (m Multi) Invoke(ctx context.Context, event string, data map[string]any) error {
	var errs []error
	for _, c := range m {
		if err := c.Invoke(ctx, event, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
