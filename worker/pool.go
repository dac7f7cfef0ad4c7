// Package worker runs the asynchronous OCR-and-extract pipeline. The upload
// handler enqueues a job against a placeholder record; a worker later writes
// the extracted fields (status completed) or marks the record failed. Jobs
// are never retried and an in-flight job cannot be cancelled.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/katalogbuku/backend/models"
	"github.com/katalogbuku/backend/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrQueueFull is returned by Enqueue when the job queue is at capacity.
var ErrQueueFull = errors.New("extraction queue is full")

type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, text string) (*models.Book, error)
}

// Store is the slice of the book store the pipeline writes through.
type Store interface {
	CompleteExtraction(ctx context.Context, id primitive.ObjectID, book *models.Book) error
	MarkExtractionFailed(ctx context.Context, id primitive.ObjectID) error
}

type Job struct {
	RecordID primitive.ObjectID
	Image    []byte
}

type Pool struct {
	recognizer Recognizer
	extractor  Extractor
	store      Store
	jobs       chan Job
	jobTimeout time.Duration
	log        zerolog.Logger
	wg         sync.WaitGroup
}

type PoolConfig struct {
	Recognizer Recognizer
	Extractor  Extractor
	Store      Store
	QueueSize  int
	JobTimeout time.Duration
	Logger     zerolog.Logger
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 32
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	return &Pool{
		recognizer: cfg.Recognizer,
		extractor:  cfg.Extractor,
		store:      cfg.Store,
		jobs:       make(chan Job, cfg.QueueSize),
		jobTimeout: cfg.JobTimeout,
		log:        cfg.Logger,
	}
}

// Start launches n workers that drain the queue until ctx is cancelled.
func (p *Pool) Start(ctx context.Context, n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-p.jobs:
					if !ok {
						return
					}
					p.process(ctx, job)
				}
			}
		}()
	}
}

// Enqueue hands a job to the pool without blocking the caller.
func (p *Pool) Enqueue(job Job) error {
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueExtraction is the handler-facing form of Enqueue.
func (p *Pool) EnqueueExtraction(id primitive.ObjectID, image []byte) error {
	return p.Enqueue(Job{RecordID: id, Image: image})
}

// Stop closes the queue and waits for workers to finish their current job.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
}

func (p *Pool) process(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	logger := p.log.With().Str("record", job.RecordID.Hex()).Logger()

	text, err := p.recognizer.Recognize(jobCtx, job.Image)
	if err != nil {
		logger.Error().Err(err).Msg("extraction job: ocr failed")
		p.fail(job.RecordID)
		return
	}

	book, err := p.extractor.Extract(jobCtx, text)
	if err != nil {
		logger.Error().Err(err).Msg("extraction job: analysis failed")
		p.fail(job.RecordID)
		return
	}

	utils.ApplyDefaults(book)
	if err := p.store.CompleteExtraction(jobCtx, job.RecordID, book); err != nil {
		logger.Error().Err(err).Msg("extraction job: persist failed")
		p.fail(job.RecordID)
		return
	}
	logger.Info().Str("title", book.Title).Msg("extraction job completed")
}

// fail writes the failed status with its own context: the job context may
// already be done, and the status must land regardless.
func (p *Pool) fail(id primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.store.MarkExtractionFailed(ctx, id); err != nil {
		p.log.Error().Err(err).Str("record", id.Hex()).Msg("extraction job: could not mark failed")
	}
}
