package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"EduPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeting struct {
	Name string `json:"name"`
}

type recordJob struct {
	mu       sync.Mutex
	names    []string
	failures int32
	calls    atomic.Int32
}

func (j *recordJob) Name() string { return "record" }

func (j *recordJob) Type() string { return "greet" }

func (j *recordJob) Handle(_ context.Context, payload json.RawMessage) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return errors.New("flaky")
	}
	g, err := ParsePayload[greeting](payload)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.names = append(j.names, g.Name)
	return nil
}

func (j *recordJob) got() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.names...)
}

func stop(t *testing.T, q *MemoryQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, q.Stop(ctx))
}

func TestMemoryQueueProcessesAndDrains(t *testing.T) {
	job := &recordJob{}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 2, QueueSize: 10})
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	assert.Error(t, q.Start(), "second start")

	for _, name := range []string{"ada", "grace", "linus"} {
		require.NoError(t, q.Enqueue(context.Background(), "greet", greeting{Name: name}))
	}
	stop(t, q)

	assert.ElementsMatch(t, []string{"ada", "grace", "linus"}, job.got())
	assert.ErrorIs(t, q.Enqueue(context.Background(), "greet", greeting{}), ErrNotRunning)
	assert.NoError(t, q.Stop(context.Background()), "stop is idempotent")
}

func TestMemoryQueueRetriesThenSucceeds(t *testing.T) {
	job := &recordJob{failures: 2}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, RetryLimit: 3, RetryDelay: 5 * time.Millisecond})
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	require.NoError(t, q.Enqueue(context.Background(), "greet", greeting{Name: "ada"}))

	require.Eventually(t, func() bool { return len(job.got()) == 1 }, 2*time.Second, 5*time.Millisecond)
	stop(t, q)
	assert.Equal(t, int32(3), job.calls.Load())
	assert.Empty(t, q.DeadLetters())
}

func TestMemoryQueueDeadLetters(t *testing.T) {
	job := &recordJob{failures: 100}
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, RetryLimit: 1, RetryDelay: 5 * time.Millisecond})
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	require.NoError(t, q.Enqueue(context.Background(), "greet", greeting{Name: "ada"}))

	require.Eventually(t, func() bool { return len(q.DeadLetters()) == 1 }, 2*time.Second, 5*time.Millisecond)
	stop(t, q)

	dead := q.DeadLetters()[0]
	assert.Equal(t, "greet", dead.Type)
	assert.Equal(t, 1, dead.Attempts)
	assert.NotEmpty(t, dead.ID)
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestMemoryQueueRejects(t *testing.T) {
	q := NewMemoryQueue(logger.Nop(), &QueueConfig{Workers: 1, QueueSize: 1})
	q.RegisterJob(&recordJob{})
	require.NoError(t, q.Start())
	defer stop(t, q)

	assert.Error(t, q.Enqueue(context.Background(), "unknown", nil))
	assert.Error(t, q.Enqueue(context.Background(), "greet", func() {}), "unmarshalable payload")
}

func TestParsePayload(t *testing.T) {
	g, err := ParsePayload[greeting](json.RawMessage(`{"name":"ada"}`))
	require.NoError(t, err)
	assert.Equal(t, "ada", g.Name)

	_, err = ParsePayload[greeting](json.RawMessage(`[`))
	assert.Error(t, err)
}

func TestQueueConfigDefaults(t *testing.T) {
	var nilCfg *QueueConfig
	cfg := nilCfg.withDefaults()
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, 100, cfg.QueueSize)
	assert.Equal(t, 10*time.Second, cfg.RetryDelay)
}

func TestRedisQueueKeys(t *testing.T) {
	q := NewRedisQueue(logger.Nop(), nil, nil, WithKeyPrefix("test:q"))
	assert.Equal(t, "test:q:pending", q.pendingKey())
	assert.Equal(t, "test:q:inflight", q.inflightKey())
	assert.Equal(t, "test:q:retry", q.retryKey())
	assert.Equal(t, "test:q:dead", q.deadKey())
	assert.ErrorIs(t, q.Enqueue(context.Background(), "greet", nil), ErrNotRunning)
	assert.NoError(t, q.Stop(context.Background()), "stop before start")
}
