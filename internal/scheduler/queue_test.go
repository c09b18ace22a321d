package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobQueue_FIFO(t *testing.T) {
	q := newJobQueue()
	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(job{id: JobID(i)}))
	}

	for i := 1; i <= 3; i++ {
		j, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, JobID(i), j.id)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok)
}

func TestJobQueue_Remove(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{id: 1})
	q.Enqueue(job{id: 2})
	q.Enqueue(job{id: 3})

	assert.True(t, q.Remove(2))
	assert.False(t, q.Remove(2))
	assert.Equal(t, 2, q.Len())

	j, _ := q.TryDequeue()
	assert.Equal(t, JobID(1), j.id)
	j, _ = q.TryDequeue()
	assert.Equal(t, JobID(3), j.id)
}

func TestJobQueue_CloseRejectsAndWakes(t *testing.T) {
	q := newJobQueue()
	q.Close()
	q.Close() // idempotent

	assert.False(t, q.Enqueue(job{id: 1}))
	_, open := <-q.Wait()
	assert.False(t, open)
}

func TestJobQueue_Drain(t *testing.T) {
	q := newJobQueue()
	q.Enqueue(job{id: 1})
	q.Enqueue(job{id: 2})

	dropped := q.Drain()
	assert.Len(t, dropped, 2)
	assert.Zero(t, q.Len())
}
