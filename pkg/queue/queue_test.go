package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewQueue(rdb, zap.NewNop()), mr
}

func decodeJobs(t *testing.T, raw []string) []Job {
	t.Helper()
	jobs := make([]Job, 0, len(raw))
	for _, r := range raw {
		var j Job
		require.NoError(t, json.Unmarshal([]byte(r), &j))
		jobs = append(jobs, j)
	}
	return jobs
}

func TestQueue_EnqueueDequeue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	job, err := q.Enqueue(ctx, JobTypeProposalArchive, map[string]int{"sequence_id": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, JobTypeProposalArchive, got.Type)
	assert.JSONEq(t, `{"sequence_id":3}`, string(got.Payload))
	assert.Zero(t, got.Attempt)
}

func TestQueue_DequeueSkipsMalformed(t *testing.T) {
	q, mr := newTestQueue(t)
	_, err := mr.Push(QueueArchives, "not json")
	require.NoError(t, err)

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestQueue_RetryThenDLQ(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	job, err := NewJob(JobTypeProposalArchive, map[string]int{"sequence_id": 0})
	require.NoError(t, err)

	for attempt := 1; attempt < MaxRetries; attempt++ {
		require.NoError(t, q.Retry(ctx, job))
		queued, err := mr.List(QueueArchives)
		require.NoError(t, err)
		jobs := decodeJobs(t, queued)
		require.Len(t, jobs, 1, "attempt %d goes back on the queue", attempt)
		assert.Equal(t, attempt, jobs[0].Attempt)
		assert.False(t, mr.Exists(QueueDLQ))

		next, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NotNil(t, next)
		job = next
	}

	require.NoError(t, q.Retry(ctx, job))
	assert.False(t, mr.Exists(QueueArchives))
	dead, err := mr.List(QueueDLQ)
	require.NoError(t, err)
	jobs := decodeJobs(t, dead)
	require.Len(t, jobs, 1)
	assert.Equal(t, MaxRetries, jobs[0].Attempt)
	assert.Equal(t, job.ID, jobs[0].ID)
}

func TestNewJob(t *testing.T) {
	before := time.Now().UTC()
	job, err := NewJob(JobTypeProposalArchive, struct {
		Refund uint64 `json:"refund"`
	}{5359200})
	require.NoError(t, err)
	assert.JSONEq(t, `{"refund":5359200}`, string(job.Payload))
	assert.False(t, job.CreatedAt.Before(before))

	_, err = NewJob(JobTypeProposalArchive, make(chan int))
	assert.Error(t, err)
}
