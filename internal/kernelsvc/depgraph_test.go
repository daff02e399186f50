package kernelsvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsiatein/helenium/internal/errors"
	"github.com/hsiatein/helenium/internal/runtime"
)

func factories(deps map[string][]string) []runtime.Factory {
	out := make([]runtime.Factory, 0, len(deps))
	for name, d := range deps {
		out = append(out, runtime.Factory{Name: name, Deps: d})
	}
	return out
}

func Test_BuildDepGraph_LinearChain(t *testing.T) {
	g, err := buildDepGraph(factories(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"b"},
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, g.order)
}

func Test_BuildDepGraph_UnknownDependency(t *testing.T) {
	_, err := buildDepGraph(factories(map[string][]string{
		"a": {"ghost"},
	}))
	assert.ErrorIs(t, err, errors.ErrUnknownDependency)
}

func Test_BuildDepGraph_CyclicDependency(t *testing.T) {
	_, err := buildDepGraph(factories(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}))
	assert.ErrorIs(t, err, errors.ErrCyclicDependency)
}

func Test_BuildDepGraph_DeterministicOrderAmongIndependents(t *testing.T) {
	g, err := buildDepGraph(factories(map[string][]string{
		"z": nil,
		"a": nil,
		"m": nil,
	}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "m", "z"}, g.order)
}

func Test_ReadinessCache_InitWave(t *testing.T) {
	g, err := buildDepGraph(factories(map[string][]string{
		"a": nil,
		"b": nil,
		"c": {"a", "b"},
	}))
	require.NoError(t, err)

	rc := newReadinessCache(g.deps, g.names)
	wave := rc.prepare()
	assert.ElementsMatch(t, []string{"a", "b"}, wave)

	unlocked := rc.refresh("a")
	assert.Empty(t, unlocked)

	unlocked = rc.refresh("b")
	assert.Equal(t, []string{"c"}, unlocked)
	assert.Equal(t, 1, rc.remaining())
}

func Test_ReadinessCache_ShutdownWaveIsSymmetric(t *testing.T) {
	g, err := buildDepGraph(factories(map[string][]string{
		"a": nil,
		"b": {"a"},
		"c": {"a"},
	}))
	require.NoError(t, err)

	// shutdown prerequisites are dependents: a must wait for b and c.
	rc := newReadinessCache(g.dependents, g.names)
	wave := rc.prepare()
	assert.ElementsMatch(t, []string{"b", "c"}, wave)

	unlocked := rc.refresh("b")
	assert.Empty(t, unlocked)

	unlocked = rc.refresh("c")
	assert.Equal(t, []string{"a"}, unlocked)
}

func Test_KahnOrder_DiamondDependency(t *testing.T) {
	g, err := buildDepGraph(factories(map[string][]string{
		"base":  nil,
		"left":  {"base"},
		"right": {"base"},
		"top":   {"left", "right"},
	}))
	require.NoError(t, err)

	pos := make(map[string]int, len(g.order))
	for i, n := range g.order {
		pos[n] = i
	}

	assert.Less(t, pos["base"], pos["left"])
	assert.Less(t, pos["base"], pos["right"])
	assert.Less(t, pos["left"], pos["top"])
	assert.Less(t, pos["right"], pos["top"])
}
