package importer

// service.go is the public entry point for the import subsystem: preview,
// submit, status, cancel, list, cleanup. Each submitted job runs as an
// independent background task; distinct jobs share no mutable state beyond
// the job store.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultPreviewRows is how many data rows a preview returns.
const DefaultPreviewRows = 10

// listJobsLimit caps how many recent jobs ListJobs returns per owner.
const listJobsLimit = 20

// Options configure a Service. Zero values fall back to defaults.
type Options struct {
	BatchSize         int
	PreviewRows       int
	MaxConcurrentJobs int
	MaxWaitTime       time.Duration
}

// Service coordinates parsing, detection, validation, and job execution.
type Service struct {
	jobs       JobStore
	categories CategoryStore
	vendors    VendorStore
	records    RecordStore

	limiter     *JobLimiter
	batchSize   int
	previewRows int
	log         *slog.Logger

	mu     sync.RWMutex
	active map[string]*activeJob
}

// activeJob tracks an in-process job run so cancellation can reach it.
type activeJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a Service backed by the given stores.
func NewService(jobs JobStore, categories CategoryStore, vendors VendorStore, records RecordStore, opts Options) *Service {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	previewRows := opts.PreviewRows
	if previewRows <= 0 {
		previewRows = DefaultPreviewRows
	}

	return &Service{
		jobs:        jobs,
		categories:  categories,
		vendors:     vendors,
		records:     records,
		limiter:     NewJobLimiter(opts.MaxConcurrentJobs, opts.MaxWaitTime),
		batchSize:   batchSize,
		previewRows: previewRows,
		log:         slog.Default(),
		active:      make(map[string]*activeJob),
	}
}

// PreviewResult is the outcome of parsing and detecting a file without
// persisting anything.
type PreviewResult struct {
	Headers         []string     `json:"headers"`
	DetectedMapping FieldMapping `json:"detectedMapping"`
	PreviewRows     []ParsedRow  `json:"previewRows"`
	TotalRows       int          `json:"totalRows"`
	Warnings        []string     `json:"warnings,omitempty"`
}

// Preview parses file bytes and suggests a column mapping. It never touches
// any store; the caller confirms or overrides the mapping before starting a
// job.
func (s *Service) Preview(data []byte, format string) (*PreviewResult, error) {
	pf, err := ParseFile(data, format)
	if err != nil {
		return nil, err
	}

	n := s.previewRows
	if n > len(pf.Rows) {
		n = len(pf.Rows)
	}

	return &PreviewResult{
		Headers:         pf.Headers,
		DetectedMapping: DetectColumns(pf.Headers),
		PreviewRows:     pf.Rows[:n],
		TotalRows:       pf.TotalRows,
		Warnings:        pf.Warnings,
	}, nil
}

// Validate runs full-file validation against a confirmed mapping, without
// starting a job.
func (s *Service) Validate(rows []ParsedRow, mapping FieldMapping, recordType RecordType, opts ImportOptions) (ValidationReport, error) {
	if !recordType.Valid() {
		return ValidationReport{}, fmt.Errorf("unknown record type: %q", recordType)
	}
	if len(mapping) == 0 {
		return ValidationReport{}, fmt.Errorf("field mapping is empty")
	}
	return ValidateRows(rows, mapping, recordType, opts), nil
}

// StartJob creates a pending job and begins processing it asynchronously,
// returning the job ID immediately. Poll JobStatus for progress. Returns
// ErrTooManyJobs when the concurrency limit holds the submission too long.
func (s *Service) StartJob(ctx context.Context, rows []ParsedRow, mapping FieldMapping, recordType RecordType, ownerID string, opts ImportOptions) (string, error) {
	if !recordType.Valid() {
		return "", fmt.Errorf("unknown record type: %q", recordType)
	}
	if ownerID == "" {
		return "", fmt.Errorf("owner ID is required")
	}
	if len(mapping) == 0 {
		return "", fmt.Errorf("field mapping is empty")
	}

	// Blank rows never count toward totals; keep original numbering for
	// error attribution.
	src := make([]SourceRow, 0, len(rows))
	for i, row := range rows {
		if isBlankRow(row, mapping) {
			continue
		}
		src = append(src, SourceRow{Line: i + headerOffset, Row: row})
	}
	if len(src) == 0 {
		return "", fmt.Errorf("no importable rows")
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	job := &ImportJob{
		ID:           uuid.New().String(),
		OwnerID:      ownerID,
		RecordType:   recordType,
		Status:       StatusPending,
		TotalRows:    len(src),
		Results:      ImportResults{},
		Errors:       []RowError{},
		Warnings:     []RowWarning{},
		FieldMapping: mapping,
		Options:      opts,
		CreatedAt:    time.Now(),
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		s.limiter.Release()
		return "", fmt.Errorf("create job: %w", err)
	}

	// The run outlives the submitting request, so it gets its own context.
	runCtx, cancel := context.WithCancel(context.Background())
	handle := &activeJob{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.active[job.ID] = handle
	s.mu.Unlock()

	go s.run(runCtx, job, src, handle)

	return job.ID, nil
}

// run executes one job in the background with panic recovery so a bad batch
// can never leak a limiter slot or leave the job dangling in processing.
func (s *Service) run(ctx context.Context, job *ImportJob, rows []SourceRow, handle *activeJob) {
	exec := &batchExecutor{
		jobs:      s.jobs,
		records:   s.records,
		refs:      NewReferenceCache(s.categories, s.vendors, job.OwnerID, job.RecordType, job.Options),
		batchSize: s.batchSize,
		log:       s.log,
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in import job", "job_id", job.ID, "panic", r)
			exec.finish(job, StatusFailed, jobLevelError(fmt.Sprintf("internal error: %v", r)), s.log.With("job_id", job.ID))
		}

		s.mu.Lock()
		delete(s.active, job.ID)
		s.mu.Unlock()

		close(handle.done)
		s.limiter.Release()
	}()

	exec.Run(ctx, job, rows)
}

// JobStatus returns the current snapshot of a job.
func (s *Service) JobStatus(ctx context.Context, jobID string) (*ImportJob, error) {
	return s.jobs.Get(ctx, jobID)
}

// ListJobs returns the owner's recent jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, ownerID string) ([]*ImportJob, error) {
	return s.jobs.ListByOwner(ctx, ownerID, listJobsLimit)
}

// CancelJob requests cancellation of a job. The request is honored at the
// next batch boundary; an in-flight batch is never interrupted. Returns true
// when the cancellation was accepted, false when the job was already
// terminal.
func (s *Service) CancelJob(ctx context.Context, jobID string) (bool, error) {
	s.mu.RLock()
	handle, running := s.active[jobID]
	s.mu.RUnlock()

	if running {
		handle.cancel()
		return true, nil
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return false, err
	}
	if job.Status.Terminal() {
		return false, nil
	}

	cancelled := StatusCancelled
	now := time.Now()
	if err := s.jobs.Apply(ctx, jobID, JobUpdate{Status: &cancelled, CompletedAt: &now}); err != nil {
		if err == ErrJobTerminal {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CleanupOlderThan purges terminal jobs older than the given age.
func (s *Service) CleanupOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	return s.jobs.DeleteTerminalOlderThan(ctx, time.Now().Add(-age))
}

// WaitForJobs blocks until all running jobs complete or the context is
// cancelled. Used during graceful shutdown.
func (s *Service) WaitForJobs(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveJobs returns the number of jobs currently running.
func (s *Service) ActiveJobs() int {
	return s.limiter.ActiveCount()
}

// waitJob blocks until the given job's run goroutine exits. It reports false
// when the job is not currently active.
func (s *Service) waitJob(jobID string) bool {
	s.mu.RLock()
	handle, ok := s.active[jobID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	<-handle.done
	return true
}
