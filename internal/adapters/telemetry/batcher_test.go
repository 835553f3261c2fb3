package telemetry_test

import (
	"sync"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.trai.ch/rbt/internal/adapters/telemetry"
)

type chunks struct {
	mu  sync.Mutex
	all []string
}

func (c *chunks) add(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = append(c.all, string(p))
}

func (c *chunks) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.all...)
}

func TestBatcher_FlushOnSize(t *testing.T) {
	var got chunks
	b := telemetry.NewBatcher(5, time.Hour, got.add)
	defer func() { _ = b.Close() }()

	_, err := b.Write([]byte("123"))
	require.NoError(t, err)
	assert.Empty(t, got.get())

	_, err = b.Write([]byte("456"))
	require.NoError(t, err)
	assert.Equal(t, []string{"123456"}, got.get())
}

func TestBatcher_FlushOnInterval(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		var got chunks
		b := telemetry.NewBatcher(100, 50*time.Millisecond, got.add)
		defer func() { _ = b.Close() }()

		_, err := b.Write([]byte("compiling"))
		require.NoError(t, err)

		time.Sleep(49 * time.Millisecond)
		synctest.Wait()
		assert.Empty(t, got.get())

		time.Sleep(2 * time.Millisecond)
		synctest.Wait()
		assert.Equal(t, []string{"compiling"}, got.get())
	})
}

func TestBatcher_ManualFlush(t *testing.T) {
	var got chunks
	b := telemetry.NewBatcher(100, time.Hour, got.add)
	defer func() { _ = b.Close() }()

	_, err := b.Write([]byte("hello"))
	require.NoError(t, err)
	b.Flush()
	b.Flush()

	assert.Equal(t, []string{"hello"}, got.get())
}

func TestBatcher_CloseFlushes(t *testing.T) {
	var got chunks
	b := telemetry.NewBatcher(100, time.Hour, got.add)

	_, err := b.Write([]byte("pending"))
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.Equal(t, []string{"pending"}, got.get())

	_, err = b.Write([]byte("late"))
	require.ErrorIs(t, err, telemetry.ErrBatcherClosed)
}

func TestBatcher_ConcurrentWrites(t *testing.T) {
	var mu sync.Mutex
	total := 0
	b := telemetry.NewBatcher(20, time.Millisecond, func(p []byte) {
		mu.Lock()
		defer mu.Unlock()
		total += len(p)
	})

	const workers, iterations = 10, 100
	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			for j := range iterations {
				_, _ = b.Write([]byte("a"))
				if j%10 == 0 {
					b.Flush()
				}
			}
		})
	}
	wg.Wait()
	require.NoError(t, b.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, workers*iterations, total)
}
