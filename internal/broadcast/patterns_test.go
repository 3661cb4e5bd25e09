package broadcast

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPatterns_Exact(t *testing.T) {
	p := NewPatterns([]string{"tool:pre", "tool:post"})

	require.True(t, p.Match("tool:pre"))
	require.True(t, p.Match("tool:post"))
	require.False(t, p.Match("content_block:delta"))
	require.False(t, p.Match("tool:pre "))
}

func TestPatterns_Wildcard(t *testing.T) {
	p := NewPatterns([]string{"content_block:*", "tool:*"})

	require.True(t, p.Match("content_block:start"))
	require.True(t, p.Match("content_block:delta"))
	require.True(t, p.Match("content_block:end"))
	require.True(t, p.Match("tool:pre"))
	require.True(t, p.Match("tool:"))
	require.False(t, p.Match("tools:pre"))
	require.False(t, p.Match("session:start"))
}

func TestPatterns_Empty(t *testing.T) {
	p := NewPatterns(nil)
	require.False(t, p.Match(""))
	require.False(t, p.Match("tool:pre"))
	require.Equal(t, 0, p.Len())
}

func TestPatterns_StarMatchesEverything(t *testing.T) {
	p := NewPatterns([]string{"*"})
	require.True(t, p.Match(""))
	require.True(t, p.Match("anything:at-all"))
}

func TestPatterns_StarInMiddleIsExact(t *testing.T) {
	p := NewPatterns([]string{"tool:*:pre"})
	require.True(t, p.Match("tool:*:pre"))
	require.False(t, p.Match("tool:bash:pre"))
}

func TestPatterns_Matched(t *testing.T) {
	p := NewPatterns([]string{"tool:pre", "tool:*", "t*", "session:start"})

	got, ok := p.Matched("tool:pre")
	require.True(t, ok)
	require.Equal(t, "tool:pre", got)

	got, ok = p.Matched("tool:bash")
	require.True(t, ok)
	require.Equal(t, "tool:*", got)

	got, ok = p.Matched("turn:end")
	require.True(t, ok)
	require.Equal(t, "t*", got)

	_, ok = p.Matched("prompt:submit")
	require.False(t, ok)
}

func TestPatterns_ExactAndWildcardsKeepOrder(t *testing.T) {
	p := NewPatterns([]string{"b", "a:*", "a", "b", "c:*"})
	require.Equal(t, []string{"b", "a"}, p.Exact())
	require.Equal(t, []string{"a:*", "c:*"}, p.Wildcards())
	require.Equal(t, []string{"b", "a:*", "a", "b", "c:*"}, p.List())
}

func TestDefaultPatterns_ForwardDefaultEvents(t *testing.T) {
	p := NewPatterns(DefaultEvents)
	for _, ev := range DefaultEvents {
		require.True(t, p.Match(ev), ev)
	}
	require.False(t, p.Match("tool:unknown"))
	require.False(t, p.Match("session:resume"))
	require.False(t, p.Match("content_block"))
}

// ===========================================================================
// Tests de propiedades (pgregory.net/rapid)
// ===========================================================================

var eventName = rapid.StringMatching(`[a-z_]{0,6}(:[a-z*]{0,5})?\*?`)

func TestProperty_MatchIffExactOrPrefix(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		patterns := rapid.SliceOfN(eventName, 0, 8).Draw(rt, "patterns")
		event := rapid.OneOf(eventName, rapid.SampledFrom(append(patterns, "x"))).Draw(rt, "event")

		want := false
		for _, pat := range patterns {
			if strings.HasSuffix(pat, "*") {
				if strings.HasPrefix(event, strings.TrimRight(pat, "*")) {
					want = true
				}
			} else if pat == event {
				want = true
			}
		}

		require.Equal(rt, want, NewPatterns(patterns).Match(event))
	})
}

func TestProperty_DefaultSetForwardsOnlyDefaults(t *testing.T) {
	p := NewPatterns(DefaultEvents)
	rapid.Check(t, func(rt *rapid.T) {
		event := eventName.Draw(rt, "event")
		require.Equal(rt, slices.Contains(DefaultEvents, event), p.Match(event))
	})
}

func TestProperty_PatternAlwaysMatchesItself(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pat := eventName.Draw(rt, "pattern")
		require.True(rt, NewPatterns([]string{pat}).Match(pat))
	})
}

func TestProperty_MatchedIsAConfiguredPattern(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		patterns := rapid.SliceOfN(eventName, 0, 8).Draw(rt, "patterns")
		event := eventName.Draw(rt, "event")
		p := NewPatterns(patterns)

		got, ok := p.Matched(event)
		require.Equal(rt, p.Match(event), ok)
		if !ok {
			return
		}
		// la etiqueta de métricas sale de la config, no del evento
		require.Contains(rt, patterns, got)
		require.True(rt, NewPatterns([]string{got}).Match(event))
	})
}
