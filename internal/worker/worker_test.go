package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xendao/governance/internal/address"
	"github.com/xendao/governance/internal/models"
	"github.com/xendao/governance/pkg/queue"
)

type memoryQueue struct {
	mu      sync.Mutex
	jobs    []*queue.Job
	retried []*queue.Job
}

func (q *memoryQueue) Enqueue(_ context.Context, jobType queue.JobType, payload interface{}) (*queue.Job, error) {
	job, err := queue.NewJob(jobType, payload)
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return job, nil
}

func (q *memoryQueue) Dequeue(ctx context.Context) (*queue.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return nil, ctx.Err()
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *memoryQueue) Retry(_ context.Context, job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	job.Attempt++
	q.retried = append(q.retried, job)
	return nil
}

type recordingUploader struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (u *recordingUploader) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.objects == nil {
		u.objects = make(map[string][]byte)
	}
	u.objects[key] = data
	return "https://archive.example/" + key, nil
}

func receipt() *models.CloseReceipt {
	org := address.MustParsePubkey("3Dwva5gFLytc4QvtVWRAXR7YhE6oA1CsFcHWxGQnJJR4")
	return &models.CloseReceipt{
		Organization: org,
		Proposal:     address.MustParsePubkey("8fV5rjoNMUe9bgoPCFNChcos4C3RLM95MupWcDR89Bue"),
		SequenceID:   0,
		Description:  "Fund X",
		YesVotes:     2,
		NoVotes:      1,
		Refund:       5359200,
		ClosedAt:     time.Unix(1700000000, 0).UTC(),
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	q := &memoryQueue{}
	up := &recordingUploader{}

	require.NoError(t, NewArchiver(q).EnqueueArchive(ctx, receipt()))
	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)

	key, err := NewArchiveProcessor(up, q, nil).Process(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, "archives/3Dwva5gFLytc4QvtVWRAXR7YhE6oA1CsFcHWxGQnJJR4/0-1700000000.json", key)

	var stored models.CloseReceipt
	require.NoError(t, json.Unmarshal(up.objects[key], &stored))
	assert.Equal(t, "Fund X", stored.Description)
	assert.Equal(t, uint64(2), stored.YesVotes)
	assert.Equal(t, uint64(5359200), stored.Refund)
}

func TestProcess_UnknownType(t *testing.T) {
	_, err := NewArchiveProcessor(&recordingUploader{}, &memoryQueue{}, nil).Process(context.Background(), &queue.Job{Type: "email"})
	assert.Error(t, err)
}

func TestRun_RetriesFailedUpload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &memoryQueue{}
	up := &recordingUploader{err: errors.New("s3 unavailable")}
	require.NoError(t, NewArchiver(q).EnqueueArchive(ctx, receipt()))

	p := NewArchiveProcessor(up, q, nil)
	p.backoff = time.Millisecond
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.retried) == 1
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 1, q.retried[0].Attempt)
}
