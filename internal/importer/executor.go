package importer

// executor.go runs the batched import loop for one job.
//
// Rows are partitioned into fixed-size batches. Batches run strictly
// sequentially so peak memory and downstream write load stay bounded; within
// a batch, row extraction fans out across goroutines and fans back in before
// the bulk write. Error attribution always uses the original spreadsheet row
// number regardless of extraction completion order.
//
// Progress lands in the job store as atomic partial updates at a sampled
// cadence (every flushEvery batches and on every terminal path) to bound
// write amplification. Cancellation is cooperative and only honored at batch
// boundaries; an in-flight batch always runs to completion.

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultBatchSize is the number of rows per bulk-persistence call.
const DefaultBatchSize = 100

// defaultFlushEvery is how many batch boundaries pass between job-store
// progress writes.
const defaultFlushEvery = 5

type batchExecutor struct {
	jobs      JobStore
	records   RecordStore
	refs      *ReferenceCache
	batchSize int
	log       *slog.Logger
}

// extraction is the per-row fan-out result.
type extraction struct {
	line     int
	record   LedgerRecord
	ok       bool
	errors   []RowError
	warnings []RowWarning
}

// Run processes all rows for the job and drives it to a terminal state.
// rows must already exclude blank rows; job.TotalRows == len(rows).
func (e *batchExecutor) Run(ctx context.Context, job *ImportJob, rows []SourceRow) {
	log := e.log.With("job_id", job.ID, "owner_id", job.OwnerID)

	// A cancel that lands before the first batch leaves processedRows at 0.
	if ctx.Err() != nil {
		e.finish(job, StatusCancelled, JobUpdate{}, log)
		return
	}

	processing := StatusProcessing
	if err := e.jobs.Apply(ctx, job.ID, JobUpdate{Status: &processing}); err != nil {
		log.Error("job start failed", "error", err)
		return
	}

	if err := e.refs.Preload(ctx); err != nil {
		e.finish(job, StatusFailed, jobLevelError(fmt.Sprintf("reference preload failed: %v", err)), log)
		return
	}

	total := len(rows)
	processed := 0
	pending := JobUpdate{}
	sinceFlush := 0

	for start := 0; start < total; start += e.batchSize {
		if ctx.Err() != nil {
			e.finish(job, StatusCancelled, pending, log)
			return
		}

		end := start + e.batchSize
		if end > total {
			end = total
		}
		batch := rows[start:end]

		results := e.extractBatch(ctx, job, batch)

		var succeeded []extraction
		batchFailed := 0
		for _, res := range results {
			pending.AppendWarnings = append(pending.AppendWarnings, res.warnings...)
			if res.ok {
				succeeded = append(succeeded, res)
			} else {
				pending.AppendErrors = append(pending.AppendErrors, res.errors...)
				batchFailed++
			}
		}

		inserted, insertFailures := e.persistBatch(ctx, succeeded, log)
		for _, f := range insertFailures {
			pending.AppendErrors = append(pending.AppendErrors, f)
			batchFailed++
		}

		processed += len(batch)
		pending.AddProcessed += len(batch)
		// Skipped records were handled without error, so they land on the
		// success side of the processed split.
		pending.AddSuccessful += inserted.Inserted + inserted.Updated + inserted.Skipped
		pending.AddFailed += batchFailed
		pending.AddCreated += inserted.Inserted
		pending.AddUpdated += inserted.Updated
		pending.AddSkipped += inserted.Skipped
		pending.AddResultFail += batchFailed

		if batchFailed > 0 && !job.Options.SkipInvalidRows {
			pending.AppendErrors = append(pending.AppendErrors,
				RowError{Message: fmt.Sprintf("import aborted: %d row(s) failed and skipInvalidRows is disabled", batchFailed)})
			e.finish(job, StatusFailed, withProgress(pending, processed, total), log)
			return
		}

		sinceFlush++
		if sinceFlush >= defaultFlushEvery {
			if err := e.flush(ctx, job.ID, withProgress(pending, processed, total)); err != nil {
				log.Error("progress flush failed", "error", err)
				e.finish(job, StatusFailed, jobLevelError(fmt.Sprintf("job store unavailable: %v", err)), log)
				return
			}
			pending = JobUpdate{}
			sinceFlush = 0
		}
	}

	e.finish(job, StatusCompleted, withProgress(pending, total, total), log)
	log.Info("import completed", "total_rows", total)
}

// extractBatch fans row extraction out across goroutines and fans back in,
// preserving batch order.
func (e *batchExecutor) extractBatch(ctx context.Context, job *ImportJob, batch []SourceRow) []extraction {
	results := make([]extraction, len(batch))

	var wg sync.WaitGroup
	for i, sr := range batch {
		wg.Add(1)
		go func(i int, sr SourceRow) {
			defer wg.Done()
			results[i] = e.extractRow(ctx, job, sr)
		}(i, sr)
	}
	wg.Wait()

	return results
}

// extractRow validates one row and coerces it into a LedgerRecord, resolving
// category and vendor references through the job's cache.
func (e *batchExecutor) extractRow(ctx context.Context, job *ImportJob, sr SourceRow) extraction {
	res := extraction{line: sr.Line}

	errs, warns := validateRow(sr.Row, sr.Line, job.FieldMapping, job.RecordType, job.Options)
	res.warnings = warns
	if len(errs) > 0 {
		res.errors = errs
		return res
	}

	value := func(field string) string {
		col := job.FieldMapping.ColumnFor(field)
		if col == "" {
			return ""
		}
		return sr.Row[col]
	}

	amount, err := ParseAmount(value(FieldAmount))
	if err != nil {
		res.errors = append(res.errors, RowError{Row: sr.Line, Field: FieldAmount, Message: err.Error(), Value: value(FieldAmount)})
		return res
	}

	// Validation already guaranteed a parsable date where one is required;
	// expenses without a date fall back to the import time.
	date := time.Now()
	if raw := value(FieldDate); raw != "" {
		date, _ = ParseDate(raw, job.Options.DateFormat)
	}

	categoryID, err := e.refs.ResolveCategory(ctx, value(FieldCategory))
	if err != nil {
		res.errors = append(res.errors, RowError{Row: sr.Line, Field: FieldCategory, Message: err.Error(), Value: value(FieldCategory)})
		return res
	}
	vendorID, err := e.refs.ResolveVendor(ctx, value(FieldVendor))
	if err != nil {
		res.errors = append(res.errors, RowError{Row: sr.Line, Field: FieldVendor, Message: err.Error(), Value: value(FieldVendor)})
		return res
	}

	res.record = LedgerRecord{
		ID:          uuid.New().String(),
		OwnerID:     job.OwnerID,
		RecordType:  job.RecordType,
		Description: value(FieldDescription),
		Amount:      amount,
		Date:        date,
		CategoryID:  categoryID,
		VendorID:    vendorID,
		Recurring:   ParseRecurring(value(FieldRecurring)),
		JobID:       job.ID,
		CreatedAt:   time.Now(),
	}
	res.ok = true
	return res
}

// persistBatch attempts one unordered bulk insert of the batch's successful
// extractions. A structural bulk failure degrades to inserting the records
// individually so one bad record never blocks the rest.
func (e *batchExecutor) persistBatch(ctx context.Context, succeeded []extraction, log *slog.Logger) (BulkInsertResult, []RowError) {
	if len(succeeded) == 0 {
		return BulkInsertResult{}, nil
	}

	records := make([]LedgerRecord, len(succeeded))
	for i, s := range succeeded {
		records[i] = s.record
	}

	res, err := e.records.BulkInsert(ctx, records)
	if err != nil {
		log.Warn("bulk insert failed, retrying records individually", "records", len(records), "error", err)
		return e.persistIndividually(ctx, succeeded)
	}

	var failures []RowError
	for _, f := range res.Failed {
		failures = append(failures, RowError{Row: succeeded[f.Index].line, Message: fmt.Sprintf("insert failed: %s", f.Message)})
	}
	return *res, failures
}

// persistIndividually is the per-record fallback after a structural bulk
// failure, recording each outcome separately.
func (e *batchExecutor) persistIndividually(ctx context.Context, succeeded []extraction) (BulkInsertResult, []RowError) {
	var res BulkInsertResult
	var failures []RowError

	for _, s := range succeeded {
		if err := e.records.Insert(ctx, s.record); err != nil {
			failures = append(failures, RowError{Row: s.line, Message: fmt.Sprintf("insert failed: %v", err)})
			continue
		}
		res.Inserted++
	}

	return res, failures
}

// flush applies a buffered update to the job store.
func (e *batchExecutor) flush(ctx context.Context, jobID string, update JobUpdate) error {
	if update.IsZero() {
		return nil
	}
	return e.jobs.Apply(ctx, jobID, update)
}

// finish drives the job to a terminal state, folding any buffered progress
// into the final update. The job store context is detached from the run
// context so a cancelled job still records its outcome.
func (e *batchExecutor) finish(job *ImportJob, status JobStatus, pending JobUpdate, log *slog.Logger) {
	now := time.Now()
	pending.Status = &status
	pending.CompletedAt = &now
	if status == StatusCompleted {
		full := 100
		pending.Progress = &full
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.jobs.Apply(ctx, job.ID, pending); err != nil {
		log.Error("failed to record terminal job state", "status", status, "error", err)
		return
	}
	log.Info("job finished", "status", status)
}

// withProgress stamps the computed progress percentage onto an update.
func withProgress(u JobUpdate, processed, total int) JobUpdate {
	pct := 100
	if total > 0 {
		pct = processed * 100 / total
	}
	u.Progress = &pct
	return u
}

// jobLevelError builds an update carrying a single job-level error entry
// (row 0).
func jobLevelError(msg string) JobUpdate {
	return JobUpdate{AppendErrors: []RowError{{Message: msg}}}
}
