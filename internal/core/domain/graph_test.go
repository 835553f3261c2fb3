package domain_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rbt/internal/core/domain"
)

func TestGraph_TopologicalOrder(t *testing.T) {
	g := domain.NewGraph()
	job := mustJob(t, sysCommand(t, "true"))

	// d depends on b and c, both depend on a.
	add := func(fp string, inputs ...domain.Fingerprint) {
		added, err := g.AddNode(domain.Fingerprint(fp), job, inputs)
		require.NoError(t, err)
		require.True(t, added)
	}
	add("d", "b", "c")
	add("c", "a")
	add("b", "a")
	add("a")
	g.AddRoot("d")

	require.NoError(t, g.Seal())

	order := g.Order()
	require.Len(t, order, 4)
	pos := make(map[domain.Fingerprint]int)
	for i, fp := range order {
		pos[fp] = i
	}
	for node := range g.Walk() {
		for _, in := range node.Inputs() {
			assert.Less(t, pos[in], pos[node.Fingerprint()], "%s must come after %s", node.Fingerprint(), in)
		}
	}
	assert.Equal(t, []domain.Fingerprint{"a", "b", "c", "d"}, order)
	assert.Equal(t, []domain.Fingerprint{"d"}, g.Roots())
	assert.ElementsMatch(t, []domain.Fingerprint{"b", "c"}, g.Dependents("a"))
	assert.ElementsMatch(t, []domain.Fingerprint{"b", "c", "d"}, g.Downstream("a"))
}

func TestGraph_AddNodeDeduplicates(t *testing.T) {
	g := domain.NewGraph()
	job := mustJob(t, sysCommand(t, "true"), domain.WithOutputs("out"))

	added, err := g.AddNode("a", job, nil)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = g.AddNode("a", job, nil)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_OutputCollision(t *testing.T) {
	g := domain.NewGraph()
	first := mustJob(t, sysCommand(t, "gen", "1"), domain.WithOutputs("out.txt"))
	second := mustJob(t, sysCommand(t, "gen", "2"), domain.WithOutputs("out.txt", "other.txt"))

	_, err := g.AddNode("aaaaaaaaaaaaaaaa", first, nil)
	require.NoError(t, err)

	_, err = g.AddNode("bbbbbbbbbbbbbbbb", second, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOutputCollision)

	var collision *domain.OutputCollisionError
	require.True(t, errors.As(err, &collision))
	assert.Equal(t, "out.txt", collision.Path)
	assert.Contains(t, collision.First, "aaaaaaaaaaaaaaaa")
	assert.Contains(t, collision.Second, "bbbbbbbbbbbbbbbb")

	_, owned := g.Owner("other.txt")
	assert.False(t, owned, "a rejected node must not claim any output")
}

func TestGraph_SealDetectsCycle(t *testing.T) {
	g := domain.NewGraph()
	job := mustJob(t, sysCommand(t, "true"))

	_, err := g.AddNode("a", job, []domain.Fingerprint{"b"})
	require.NoError(t, err)
	_, err = g.AddNode("b", job, []domain.Fingerprint{"a"})
	require.NoError(t, err)
	_, err = g.AddNode("c", job, nil)
	require.NoError(t, err)

	err = g.Seal()
	require.Error(t, err)

	var cycle *domain.CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Len(t, cycle.Jobs, 2)
	assert.True(t, slices.ContainsFunc(cycle.Jobs, func(s string) bool { return s[0] == 'a' }))
}

func TestGraph_SealDetectsMissingInput(t *testing.T) {
	g := domain.NewGraph()
	_, err := g.AddNode("a", mustJob(t, sysCommand(t, "true")), []domain.Fingerprint{"ghost"})
	require.NoError(t, err)

	err = g.Seal()
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing dependency")
}

func TestNode_String(t *testing.T) {
	g := domain.NewGraph()
	_, err := g.AddNode("0123456789abcdef", mustJob(t, sysCommand(t, "cat", "a.txt")), nil)
	require.NoError(t, err)

	n, ok := g.Node("0123456789abcdef")
	require.True(t, ok)
	assert.Equal(t, "0123456789abcdef (cat a.txt)", n.String())
}
