package sdk

import "context"

// Capability es un callback registrado por el host bajo un nombre
type Capability interface {
	Invoke(ctx context.Context, event string, data map[string]any) error
}

type CapabilityFunc func(ctx context.Context, event string, data map[string]any) error

func (f CapabilityFunc) Invoke(ctx context.Context, event string, data map[string]any) error {
	return f(ctx, event, data)
}

// Capabilities es la vista de solo lectura del registro del host
type Capabilities interface {
	Capability(name string) (Capability, bool)
}
