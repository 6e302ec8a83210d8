package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"
)

func TestWorkerPool_RunsTasks(t *testing.T) {
	var (
		pool = NewWorkerPool(3)
		tb   tomb.Tomb
		sum  atomic.Int64
		done = make(chan struct{}, 10)
	)
	pool.Setup(&tb, func(_ *tomb.Tomb, task any) error {
		sum.Add(int64(task.(int)))
		done <- struct{}{}
		return nil
	})
	assert.Equal(t, 3, pool.Size())

	for i := 1; i <= 10; i++ {
		require.NoError(t, pool.AddTask(i))
	}
	for range 10 {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("tasks not processed")
		}
	}
	assert.Equal(t, int64(55), sum.Load())

	tb.Kill(nil)
	assert.NoError(t, tb.Wait())
	assert.ErrorIs(t, pool.AddTask(11), ErrPoolClosed)
}

func TestWorkerPool_ErrorKillsTomb(t *testing.T) {
	boom := errors.New("boom")
	pool := NewWorkerPool(0)
	tb, _ := tomb.WithContext(context.Background())

	pool.Setup(tb, func(*tomb.Tomb, any) error { return boom })
	require.NoError(t, pool.AddTask("task"))

	assert.ErrorIs(t, tb.Wait(), boom)
	assert.Equal(t, 1, pool.Size())
}
