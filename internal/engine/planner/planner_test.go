package planner_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"go.trai.ch/rbt/internal/core/domain"
	"go.trai.ch/rbt/internal/core/ports/mocks"
	"go.trai.ch/rbt/internal/engine/planner"
)

const root = "/project"

func newJob(t *testing.T, tool string, args []string, opts ...domain.JobOption) *domain.Job {
	t.Helper()
	tl, err := domain.SystemTool(tool)
	require.NoError(t, err)
	cmd, err := domain.NewCommand(tl, args...)
	require.NoError(t, err)
	job, err := domain.NewJob(cmd, opts...)
	require.NoError(t, err)
	return job
}

func setup(t *testing.T) (*planner.Planner, *mocks.MockHasher) {
	t.Helper()
	ctrl := gomock.NewController(t)
	hasher := mocks.NewMockHasher(ctrl)
	logger := mocks.NewMockLogger(ctrl)
	logger.EXPECT().Debug(gomock.Any(), gomock.Any()).AnyTimes()
	return planner.NewPlanner(hasher, logger), hasher
}

func TestPlan_Diamond(t *testing.T) {
	p, _ := setup(t)

	a := newJob(t, "touch", []string{"a"}, domain.WithOutputs("a"))
	b := newJob(t, "cp", []string{"a", "b"}, domain.WithInputs(a), domain.WithOutputs("b"))
	c := newJob(t, "cp", []string{"a", "c"}, domain.WithInputs(a), domain.WithOutputs("c"))
	d := newJob(t, "cat", []string{"b", "c"}, domain.WithInputs(b, c), domain.WithOutputs("d"))

	g, err := p.Plan(t.Context(), root, []*domain.Job{d})
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	order := g.Order()
	require.Len(t, order, 4)
	first, _ := g.Node(order[0])
	last, _ := g.Node(order[3])
	assert.Same(t, a, first.Job())
	assert.Same(t, d, last.Job())
	assert.Equal(t, []domain.Fingerprint{order[3]}, g.Roots())

	position := make(map[domain.Fingerprint]int, len(order))
	for i, fp := range order {
		position[fp] = i
	}
	for node := range g.Walk() {
		for _, in := range node.Inputs() {
			assert.Less(t, position[in], position[node.Fingerprint()])
		}
	}
}

func TestPlan_HashesEachInputFileOnce(t *testing.T) {
	p, hasher := setup(t)

	hasher.EXPECT().HashPath(filepath.Join(root, "src.txt")).Return("0000000000000001", nil).Times(1)
	hasher.EXPECT().HashPath(filepath.Join(root, "dir", "b.txt")).Return("0000000000000002", nil).Times(1)

	x := newJob(t, "cat", []string{"src.txt"}, domain.WithInputFiles("src.txt"), domain.WithOutputs("x"))
	y := newJob(t, "cat", []string{"src.txt", "dir/b.txt"},
		domain.WithInputFiles("src.txt", "dir/b.txt"), domain.WithOutputs("y"))

	g, err := p.Plan(t.Context(), root, []*domain.Job{x, y})
	require.NoError(t, err)
	assert.Equal(t, 2, g.Len())
	assert.Len(t, g.Roots(), 2)
}

func TestPlan_FileContentChangesFingerprint(t *testing.T) {
	job := func(t *testing.T) *domain.Job {
		return newJob(t, "cat", []string{"a.txt"}, domain.WithInputFiles("a.txt"), domain.WithOutputs("out.txt"))
	}

	plan := func(t *testing.T, digest string) domain.Fingerprint {
		p, hasher := setup(t)
		hasher.EXPECT().HashPath(filepath.Join(root, "a.txt")).Return(digest, nil)
		g, err := p.Plan(t.Context(), root, []*domain.Job{job(t)})
		require.NoError(t, err)
		return g.Roots()[0]
	}

	first := plan(t, "00000000000000aa")
	assert.Equal(t, first, plan(t, "00000000000000aa"))
	assert.NotEqual(t, first, plan(t, "00000000000000bb"))
}

func TestPlan_DeduplicatesIdenticalJobs(t *testing.T) {
	p, _ := setup(t)

	a1 := newJob(t, "touch", []string{"a"}, domain.WithOutputs("a"))
	a2 := newJob(t, "touch", []string{"a"}, domain.WithOutputs("a"))
	b := newJob(t, "cp", []string{"a", "b"}, domain.WithInputs(a1), domain.WithOutputs("b"))
	c := newJob(t, "cp", []string{"a", "c"}, domain.WithInputs(a2), domain.WithOutputs("c"))

	g, err := p.Plan(t.Context(), root, []*domain.Job{b, c})
	require.NoError(t, err)
	assert.Equal(t, 3, g.Len())
}

func TestPlan_OutputCollision(t *testing.T) {
	p, _ := setup(t)

	x := newJob(t, "echo", []string{"x"}, domain.WithOutputs("out.txt"))
	y := newJob(t, "echo", []string{"y"}, domain.WithOutputs("out.txt"))
	z := newJob(t, "cat", nil, domain.WithInputs(x, y))

	_, err := p.Plan(t.Context(), root, []*domain.Job{z})

	var collision *domain.OutputCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, "out.txt", collision.Path)
}

func TestPlan_HashFailure(t *testing.T) {
	p, hasher := setup(t)
	hasher.EXPECT().HashPath(gomock.Any()).Return("", errors.New("input not found"))

	job := newJob(t, "cat", []string{"missing.txt"}, domain.WithInputFiles("missing.txt"))
	_, err := p.Plan(t.Context(), root, []*domain.Job{job})

	require.ErrorContains(t, err, "failed to hash input file")
	require.ErrorContains(t, err, "input not found")
}

func TestPlan_NilTarget(t *testing.T) {
	p, _ := setup(t)
	_, err := p.Plan(t.Context(), root, []*domain.Job{nil})
	assert.ErrorIs(t, err, domain.ErrNilJob)
}

func TestPlan_BuiltToolIsPlannedFirst(t *testing.T) {
	p, _ := setup(t)

	compile := newJob(t, "cc", []string{"-o", "hello", "hello.c"}, domain.WithOutputs("hello"))
	tool, err := domain.BuiltTool(compile, "hello")
	require.NoError(t, err)
	cmd, err := domain.NewCommand(tool, "world")
	require.NoError(t, err)
	greet, err := domain.NewJob(cmd, domain.WithOutputs("greeting.txt"))
	require.NoError(t, err)

	g, err := p.Plan(t.Context(), root, []*domain.Job{greet})
	require.NoError(t, err)

	order := g.Order()
	require.Len(t, order, 2)
	first, _ := g.Node(order[0])
	assert.Same(t, compile, first.Job())
}
