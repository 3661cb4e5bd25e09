package broadcast

import "strings"

// DefaultEvents son los eventos que se reenvían cuando la config no trae "events"
var DefaultEvents = []string{
	// streaming
	"content_block:start",
	"content_block:delta",
	"content_block:end",
	// tools
	"tool:pre",
	"tool:post",
	"tool:error",
	// orquestación
	"orchestrator:complete",
	"prompt:submit",
	"provider:request",
	// sesión
	"session:start",
	"session:end",
	// errores
	"error:tool",
	"error:provider",
	"error:orchestration",
	// notificaciones
	"user:notification",
}

// Patterns es un conjunto ordenado e inmutable de patrones. Un patrón que
// termina en "*" acepta todo evento que empiece con lo que precede a las
// estrellas; el resto tiene que coincidir exacto. "*" solo acepta todo.
type Patterns struct {
	all       []string
	exact     map[string]struct{}
	prefixes  []string
	wildcards []string // mismo índice que prefixes
}

func NewPatterns(list []string) Patterns {
	p := Patterns{
		all:   append([]string(nil), list...),
		exact: make(map[string]struct{}, len(list)),
	}
	for _, s := range list {
		if IsWildcard(s) {
			p.prefixes = append(p.prefixes, Prefix(s))
			p.wildcards = append(p.wildcards, s)
			continue
		}
		p.exact[s] = struct{}{}
	}
	return p
}

func IsWildcard(pattern string) bool { return strings.HasSuffix(pattern, "*") }

// Prefix quita las estrellas finales de un comodín
func Prefix(pattern string) string { return strings.TrimRight(pattern, "*") }

func (p Patterns) Match(event string) bool {
	_, ok := p.Matched(event)
	return ok
}

// Matched devuelve el patrón que aceptó event: el nombre mismo si es exacto,
// si no el primer comodín en orden de config
func (p Patterns) Matched(event string) (string, bool) {
	if _, ok := p.exact[event]; ok {
		return event, true
	}
	for i, prefix := range p.prefixes {
		if strings.HasPrefix(event, prefix) {
			return p.wildcards[i], true
		}
	}
	return "", false
}

func (p Patterns) List() []string { return append([]string(nil), p.all...) }

func (p Patterns) Len() int { return len(p.all) }

// Exact devuelve los patrones exactos en orden de config, sin repetidos
func (p Patterns) Exact() []string {
	seen := make(map[string]struct{}, len(p.exact))
	var out []string
	for _, s := range p.all {
		if IsWildcard(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Wildcards devuelve los comodines en orden de config
func (p Patterns) Wildcards() []string {
	var out []string
	for _, s := range p.all {
		if IsWildcard(s) {
			out = append(out, s)
		}
	}
	return out
}
