package worker

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Liyixin95/polars/internal/email"
	"github.com/Liyixin95/polars/internal/exporter"
	"github.com/Liyixin95/polars/internal/reader"
	"github.com/Liyixin95/polars/internal/storage"

	"golang.org/x/sync/semaphore"
)

// Pool manages concurrent read jobs and limits database load. A separate
// semaphore gates the database so queued jobs do not translate into queued
// connections.
type Pool struct {
	// jobQueue buffers incoming requests before workers pick them up.
	jobQueue chan *ReadJob
	workers  int
	// dbSem restricts the number of concurrent reads against the database.
	dbSem *semaphore.Weighted
	wg    sync.WaitGroup
	quit  chan struct{}

	// handle is the driver handle reads are adapted from. The pool never
	// mutates it; each read borrows its own transient connection.
	handle     any
	storage    storage.Provider
	emailer    email.Sender
	useGzip    bool
	attachFile bool
}

// NewPool initializes a worker pool over a driver handle. It does not start
// the workers; call Start() to begin processing.
func NewPool(workers int, maxDBConcurrency int64, handle any, store storage.Provider, emailer email.Sender, useGzip, attachFile bool) *Pool {
	return &Pool{
		jobQueue:   make(chan *ReadJob, 100), // Bounded buffer to prevent infinite memory growth
		workers:    workers,
		dbSem:      semaphore.NewWeighted(maxDBConcurrency),
		quit:       make(chan struct{}),
		handle:     handle,
		storage:    store,
		emailer:    emailer,
		useGzip:    useGzip,
		attachFile: attachFile,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.workerLoop(i)
	}
	slog.Info("Worker pool started", "workers", p.workers)
}

func (p *Pool) Submit(job *ReadJob) bool {
	select {
	case p.jobQueue <- job:
		return true
	case <-p.quit:
		return false
	default:
		// Queue full
		return false
	}
}

// Stop initiates graceful shutdown
func (p *Pool) Stop() {
	close(p.quit)
	p.wg.Wait()
	slog.Info("Worker pool stopped")
}

func (p *Pool) workerLoop(id int) {
	defer p.wg.Done()
	slog.Debug("Worker started", "worker_id", id)

	for {
		select {
		case job, ok := <-p.jobQueue:
			if !ok {
				return
			}
			p.processJob(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) processJob(workerID int, job *ReadJob) {
	defer close(job.done)
	slog.Info("Processing read job", "worker_id", workerID, "job_id", job.ID)

	job.Started = time.Now()
	job.Status = StatusProcessing
	waitTime := job.Started.Sub(job.Submitted)

	if err := p.dbSem.Acquire(job.Ctx, 1); err != nil {
		p.failJob(job, fmt.Errorf("failed to acquire db slot: %w", err))
		return
	}

	err := p.executeRead(job)
	p.dbSem.Release(1)

	if err != nil {
		p.failJob(job, err)
		return
	}

	job.Status = StatusCompleted
	job.Finished = time.Now()
	totalDuration := job.Finished.Sub(job.Started)

	slog.Info("Read job completed", "job_id", job.ID, "rows", job.Stats.RowsProcessed, "batches", job.Stats.Batches)

	statsMsg := fmt.Sprintf(
		"Read Job Summary:\n"+
			"----------------\n"+
			"Job ID: %s\n"+
			"Rows Read: %d\n"+
			"Batches: %d\n"+
			"Submitted: %s\n"+
			"Started: %s (Wait: %v)\n"+
			"Finished: %s\n"+
			"Total Duration: %v\n"+
			"Query Execution: %v\n",
		job.ID,
		job.Stats.RowsProcessed,
		job.Stats.Batches,
		job.Submitted.Format("2006-01-02 03:04:05 PM"),
		job.Started.Format("2006-01-02 03:04:05 PM"), waitTime,
		job.Finished.Format("2006-01-02 03:04:05 PM"),
		totalDuration,
		job.Stats.Duration,
	)

	const MaxAttachmentSize = 25 * 1024 * 1024 // 25MB

	if p.attachFile {
		fileContent, err := func() ([]byte, error) {
			fileReader, err := p.storage.OpenFile(job.Ctx, job.StorageKey)
			if err != nil {
				return nil, err
			}
			defer fileReader.Close()

			limitedReader := io.LimitReader(fileReader, MaxAttachmentSize+1)
			content, err := io.ReadAll(limitedReader)
			if err != nil {
				return nil, err
			}
			if len(content) > MaxAttachmentSize {
				return nil, fmt.Errorf("file exceeds max attachment size (%d bytes)", MaxAttachmentSize)
			}
			return content, nil
		}()

		if err != nil {
			slog.Warn("Skipping attachment (too large or error)", "key", job.StorageKey, "error", err)
			downloadURL := p.storage.GetDownloadURL(job.StorageKey)
			statsMsg += fmt.Sprintf("\nAttachment skipped: %v\nDownload Link: %s", err, downloadURL)
			p.emailer.SendDownloadLink(job.Email, downloadURL, statsMsg)
		} else {
			p.emailer.SendWithAttachment(job.Email, job.StorageKey, fileContent, statsMsg)
		}
	} else {
		downloadURL := p.storage.GetDownloadURL(job.StorageKey)
		p.emailer.SendDownloadLink(job.Email, downloadURL, statsMsg)
	}
}

// executeRead drives the pipeline: bridge read -> frames -> encoder ->
// [gzip] -> pipe -> storage.
func (p *Pool) executeRead(job *ReadJob) error {
	ext := job.Format
	if ext == "" {
		ext = "csv"
	}
	if ext == "excel" {
		ext = "xlsx"
	}

	if p.useGzip {
		job.StorageKey = fmt.Sprintf("frames/%s.%s.gz", job.ID, ext)
	} else {
		job.StorageKey = fmt.Sprintf("frames/%s.%s", job.ID, ext)
	}

	// Storage upload runs in the background, reading from a pipe.
	storageWriter, errChan := p.storage.StreamToFile(job.Ctx, job.StorageKey)

	var finalWriter io.WriteCloser
	if p.useGzip {
		finalWriter = gzip.NewWriter(storageWriter)
	} else {
		finalWriter = storageWriter
	}

	encoder := exporter.New(job.Format, finalWriter)

	frames, readErr := reader.ReadBatches(job.Ctx, job.Query, p.handle, reader.Options{
		Parameters: job.Parameters,
		BatchSize:  job.BatchSize,
	})

	var stats *exporter.ReadStats
	if readErr == nil {
		stats, readErr = exporter.WriteFrames(job.Ctx, frames, encoder)
		_ = frames.Close(job.Ctx)
	}

	// Close the encoder first (trailing structure), then gzip (footer),
	// then the pipe feeding storage.
	encoderCloseErr := encoder.Close()

	var outputCloseErr error
	if gw, ok := finalWriter.(*gzip.Writer); ok {
		outputCloseErr = gw.Close()
	}
	storageCloseErr := storageWriter.Close()

	uploadErr := <-errChan

	if readErr != nil {
		return fmt.Errorf("read failed: %w", readErr)
	}
	if encoderCloseErr != nil {
		return fmt.Errorf("encoder close failed: %w", encoderCloseErr)
	}
	if outputCloseErr != nil {
		return fmt.Errorf("gzip close failed: %w", outputCloseErr)
	}
	if storageCloseErr != nil {
		return fmt.Errorf("storage close failed: %w", storageCloseErr)
	}
	if uploadErr != nil {
		return fmt.Errorf("upload failed: %w", uploadErr)
	}

	job.Stats = stats
	return nil
}

func (p *Pool) failJob(job *ReadJob, err error) {
	job.Status = StatusFailed
	job.Error = err
	job.Finished = time.Now()
	slog.Error("Read job failed", "job_id", job.ID, "error", err)
}
