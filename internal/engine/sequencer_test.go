package engine_test

import (
	"sync"
	"testing"
	"time"

	. "gungnir/internal/common"
	"gungnir/internal/engine"

	"github.com/stretchr/testify/assert"
)

func TestSequencer_NeverGoesBackwards(t *testing.T) {
	base := time.Unix(1_700_000_000, 0)
	readings := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second), base}
	i := 0
	seq := engine.NewSequencer(41, func() time.Time {
		ts := readings[i]
		i++
		return ts
	})

	want := []time.Time{base, base, base.Add(time.Second), base.Add(time.Second)}
	for n, ts := range want {
		id, got := seq.Next()
		assert.Equal(t, OrderID(42+n), id)
		assert.True(t, ts.Equal(got), "reading %d: want %v got %v", n, ts, got)
	}
	assert.Equal(t, OrderID(45), seq.Current())
}

func TestSequencer_Concurrent(t *testing.T) {
	seq := engine.NewSequencer(0, nil)

	const n = 1_000
	ids := make(chan OrderID, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, _ := seq.Next()
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[OrderID]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d handed out twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, OrderID(n), seq.Current())
}
