package sdk

import "context"

// Event es la estructura mínima que viaja por el bus
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

type Action string

const (
	ActionContinue Action = "continue"
	ActionDeny     Action = "deny"
)

// HookResult le indica al bus si debe seguir ejecutando hooks
type HookResult struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

func Continue() HookResult { return HookResult{Action: ActionContinue} }

type Handler func(ctx context.Context, event string, data map[string]any) HookResult

type HookOptions struct {
	Priority int    // menor corre primero
	Name     string // solo para diagnóstico
}

// Hooks es el registro de handlers por nombre de evento que expone el kernel.
// El func devuelto quita el handler; llamarlo más de una vez no hace nada.
type Hooks interface {
	Register(event string, h Handler, opts HookOptions) (unregister func())
}

// AnyHooks lo implementan los registros que aceptan un handler para todos los eventos
type AnyHooks interface {
	Hooks
	RegisterAny(h Handler, opts HookOptions) (unregister func())
}

// Bus es la interfaz pública del event bus
type Bus interface {
	Hooks
	Emit(ctx context.Context, event string, data map[string]any) HookResult
}
