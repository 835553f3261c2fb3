package linear_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rbt/internal/adapters/linear"
	"go.trai.ch/rbt/internal/core/ports"
)

var _ ports.Telemetry = (*linear.Renderer)(nil)

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(step)
		return now
	}
}

func TestRenderer_JobLifecycle(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, linear.WithClock(stepClock(100*time.Millisecond)))

	ctx, v := r.Record(context.Background(), "compile")
	fromCtx, ok := ports.VertexFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, v, fromCtx)

	_, _ = v.Stdout().Write([]byte("first line\n"))
	_, _ = v.Stdout().Write([]byte("second line\r\n"))
	_, _ = v.Stderr().Write([]byte("warning: unused\n"))
	v.Complete(nil)
	v.Complete(errors.New("ignored"))

	assert.Equal(t, "[compile] first line\n[compile] second line\n", stdout.String())
	assert.Equal(t, "[compile] warning: unused\n[compile] ✓ Completed in 100ms\n", stderr.String())
	require.NoError(t, r.Close())
}

func TestRenderer_PartialLines(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, linear.WithClock(stepClock(time.Second)))

	_, v := r.Record(context.Background(), "job")
	_, _ = v.Stdout().Write([]byte("partial"))
	assert.Empty(t, stdout.String())

	_, _ = v.Stdout().Write([]byte(" line\nunflushed"))
	assert.Equal(t, "[job] partial line\n", stdout.String())

	v.Complete(nil)
	assert.Equal(t, "[job] partial line\n[job] unflushed\n", stdout.String())
}

func TestRenderer_Failed(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr, linear.WithClock(stepClock(50*time.Millisecond)))

	_, v := r.Record(context.Background(), "false")
	v.Complete(errors.New("exited with code 1"))

	assert.Equal(t, "[false] ✗ Failed after 50ms: exited with code 1\n", stderr.String())
}

func TestRenderer_Cached(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	_, v := r.Record(context.Background(), "cat")
	v.Cached()
	v.Complete(nil)

	assert.Empty(t, stdout.String())
	assert.Equal(t, "[cat] ~ Cached\n", stderr.String())
}

func TestRenderer_ConcurrentJobs(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	r := linear.NewRenderer(&stdout, &stderr)

	var wg sync.WaitGroup
	for _, name := range []string{"a", "b", "c", "d"} {
		wg.Go(func() {
			_, v := r.Record(context.Background(), name)
			for range 20 {
				_, _ = v.Stdout().Write([]byte("line\n"))
			}
			v.Complete(nil)
		})
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Len(t, lines, 80)
	for _, line := range lines {
		assert.Regexp(t, `^\[[abcd]\] line$`, line)
	}
	assert.Equal(t, 4, strings.Count(stderr.String(), "Completed"))
}
