// Package redisstream agrega los eventos reenviados a un stream de Redis para
// que consumidores fuera del proceso sigan la sesión.
package redisstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/EchoPBX/echopbx-broadcast/internal/transport"
	"github.com/EchoPBX/echopbx-broadcast/pkg/sdk"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// streamAdder es la parte de *redis.Client que usamos
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// DefaultTimeout acota cada XADD: Invoke corre dentro del Emit del kernel
const DefaultTimeout = 2 * time.Second

type Publisher struct {
	client  streamAdder
	stream  string
	maxLen  int64
	timeout time.Duration
	log     *zap.Logger
}

var _ sdk.Capability = (*Publisher)(nil)

type Option func(*Publisher)

// WithTimeout cambia el límite por llamada; 0 o negativo deja DefaultTimeout
func WithTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New: maxLen 0 deja el stream sin recortar
func New(client streamAdder, stream string, maxLen int64, log *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{client: client, stream: stream, maxLen: maxLen, timeout: DefaultTimeout, log: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Publisher) Invoke(ctx context.Context, event string, data map[string]any) error {
	env := transport.NewEnvelope(event, data)
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type": event,
			"data": string(b),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to add to stream %s: %w", p.stream, err)
	}

	p.log.Debug("event published",
		zap.String("event_id", env.ID),
		zap.String("type", event),
		zap.String("stream", p.stream),
		zap.String("message_id", id))
	return nil
}
