package worker

import (
	"context"
	"time"

	"github.com/Liyixin95/polars/internal/exporter"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusPending    JobStatus = "PENDING"
	StatusProcessing JobStatus = "PROCESSING"
	StatusCompleted  JobStatus = "COMPLETED"
	StatusFailed     JobStatus = "FAILED"
)

// ReadJob is one database read request flowing through the pool: execute
// the query through the bridge, encode the resulting frames, store the
// snapshot, notify the requester.
type ReadJob struct {
	// ID is the unique UUID v4 for the job.
	ID string
	// Query is the statement handed to the driver adapter.
	Query string
	// Parameters are bound query values.
	Parameters map[string]any
	// BatchSize bounds each fetched row batch; 0 reads in one batch.
	BatchSize int
	// Email is the recipient address for the completion notification.
	Email string
	// Format is the requested snapshot format (csv, json, excel, pdf).
	Format string
	// Timestamps for job lifecycle tracking.
	Submitted time.Time
	Started   time.Time
	Finished  time.Time
	// Status tracks the current state.
	Status JobStatus
	// Error holds any error encountered during processing.
	Error error
	// Stats contains row, batch and duration metrics.
	Stats *exporter.ReadStats
	// StorageKey is the path of the stored snapshot.
	StorageKey string

	// Context manages the lifecycle/cancellation of the job.
	Ctx    context.Context
	Cancel context.CancelFunc

	// done is closed once the job has settled (completed or failed).
	done chan struct{}
}

// Done is closed when the job has settled. Reading Status, Error or Stats
// is only safe after this channel closes.
func (j *ReadJob) Done() <-chan struct{} {
	return j.done
}

func NewReadJob(query, email, format string, batchSize int, timeout time.Duration) *ReadJob {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	if format == "" {
		format = "csv"
	}
	return &ReadJob{
		ID:        uuid.New().String(),
		Query:     query,
		Email:     email,
		Format:    format,
		BatchSize: batchSize,
		Submitted: time.Now(),
		Status:    StatusPending,
		Ctx:       ctx,
		Cancel:    cancel,
		done:      make(chan struct{}),
	}
}
