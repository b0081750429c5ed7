// Package worker archives closed proposals: the API enqueues the close
// receipt and the worker process uploads it as a JSON snapshot.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/xendao/governance/internal/models"
	"github.com/xendao/governance/pkg/queue"
	"github.com/xendao/governance/pkg/storage"
)

// JobQueue is the subset of *queue.Queue used by the worker.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload interface{}) (*queue.Job, error)
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Uploader stores an archive object and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// Archiver enqueues archive jobs for closed proposals.
type Archiver struct {
	queue JobQueue
}

// NewArchiver creates an archive job producer.
func NewArchiver(q JobQueue) *Archiver {
	return &Archiver{queue: q}
}

// EnqueueArchive schedules the snapshot upload of a closed proposal.
func (a *Archiver) EnqueueArchive(ctx context.Context, receipt *models.CloseReceipt) error {
	_, err := a.queue.Enqueue(ctx, queue.JobTypeProposalArchive, receipt)
	return err
}

// ArchiveProcessor uploads closed proposal snapshots.
type ArchiveProcessor struct {
	uploader Uploader
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewArchiveProcessor creates an archive job consumer.
func NewArchiveProcessor(uploader Uploader, q JobQueue, logger *zap.Logger) *ArchiveProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArchiveProcessor{uploader: uploader, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one archive job and returns the object key.
func (p *ArchiveProcessor) Process(ctx context.Context, job *queue.Job) (string, error) {
	if job.Type != queue.JobTypeProposalArchive {
		return "", fmt.Errorf("unknown job type: %s", job.Type)
	}
	var receipt models.CloseReceipt
	if err := json.Unmarshal(job.Payload, &receipt); err != nil {
		return "", fmt.Errorf("unmarshal payload: %w", err)
	}

	body, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	key := storage.ArchiveKey(receipt.Organization.String(), receipt.SequenceID, receipt.ClosedAt)
	url, err := p.uploader.Upload(ctx, key, "application/json", bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", fmt.Errorf("s3 upload: %w", err)
	}

	p.logger.Info("proposal archived",
		zap.String("organization", receipt.Organization.String()),
		zap.Uint8("sequence_id", receipt.SequenceID),
		zap.String("url", url))
	return key, nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ArchiveProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("archive worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if _, err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ArchiveProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
