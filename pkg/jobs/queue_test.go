package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handle(_ context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, job.ID)
	return nil
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.seen))
	copy(out, r.seen)
	return out
}

func TestQueueProcessesBufferedJobsBeforeStopping(t *testing.T) {
	rec := &recorder{}
	q := NewQueue("test", rec.handle, QueueConfig{Workers: 1, BufferSize: 16})
	q.Start(context.Background())

	for _, id := range []string{"j-1", "j-2", "j-3", "j-4"} {
		require.NoError(t, q.Enqueue(Job{ID: id}))
	}
	q.Stop()

	assert.ElementsMatch(t, []string{"j-1", "j-2", "j-3", "j-4"}, rec.ids())
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", (&recorder{}).handle, QueueConfig{})
	err := q.Enqueue(Job{ID: "j-1"})
	require.Error(t, err)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var (
		mu       sync.Mutex
		attempts int
		done     = make(chan struct{})
	)
	handler := func(_ context.Context, job Job) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if job.Attempt == 0 {
			return errors.New("transient failure")
		}
		close(done)
		return nil
	}

	q := NewQueue("test", handler, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "j-1"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}
