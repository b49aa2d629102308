package store

// memory.go is an in-memory implementation of every importer store
// interface. It backs tests and local development without a database; the
// semantics mirror the Postgres implementation, including terminal-job
// immutability and case-insensitive reference lookups.

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ledgerkit/importer/internal/importer"
)

// Memory holds all entities behind a single mutex. Safe for concurrent use.
// The per-domain store interfaces are exposed through typed views (Jobs,
// Categories, Vendors, Records) that all share this state.
type Memory struct {
	mu         sync.RWMutex
	jobs       map[string]*importer.ImportJob
	categories map[string]importer.Category
	vendors    map[string]importer.Vendor
	records    map[string]importer.LedgerRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		jobs:       make(map[string]*importer.ImportJob),
		categories: make(map[string]importer.Category),
		vendors:    make(map[string]importer.Vendor),
		records:    make(map[string]importer.LedgerRecord),
	}
}

type memoryJobs Memory
type memoryCategories Memory
type memoryVendors Memory
type memoryRecords Memory

var (
	_ importer.JobStore      = (*memoryJobs)(nil)
	_ importer.CategoryStore = (*memoryCategories)(nil)
	_ importer.VendorStore   = (*memoryVendors)(nil)
	_ importer.RecordStore   = (*memoryRecords)(nil)
)

// Jobs returns the job-store view.
func (m *Memory) Jobs() importer.JobStore { return (*memoryJobs)(m) }

// Categories returns the category-store view.
func (m *Memory) Categories() importer.CategoryStore { return (*memoryCategories)(m) }

// Vendors returns the vendor-store view.
func (m *Memory) Vendors() importer.VendorStore { return (*memoryVendors)(m) }

// Records returns the record-store view.
func (m *Memory) Records() importer.RecordStore { return (*memoryRecords)(m) }

func (s *memoryJobs) Create(_ context.Context, job *importer.ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get returns a snapshot of the job. The returned value is a copy; mutating
// it never affects the stored record.
func (s *memoryJobs) Get(_ context.Context, id string) (*importer.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, importer.ErrJobNotFound
	}
	return cloneJob(job), nil
}

// Apply performs an atomic partial update under the store lock.
func (s *memoryJobs) Apply(_ context.Context, id string, update importer.JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return importer.ErrJobNotFound
	}
	if job.Status.Terminal() {
		return importer.ErrJobTerminal
	}

	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.Progress != nil {
		job.Progress = *update.Progress
	}
	if update.CompletedAt != nil {
		t := *update.CompletedAt
		job.CompletedAt = &t
	}
	job.ProcessedRows += update.AddProcessed
	job.SuccessfulRows += update.AddSuccessful
	job.FailedRows += update.AddFailed
	job.Results.Created += update.AddCreated
	job.Results.Updated += update.AddUpdated
	job.Results.Skipped += update.AddSkipped
	job.Results.Failed += update.AddResultFail
	job.Errors = append(job.Errors, update.AppendErrors...)
	job.Warnings = append(job.Warnings, update.AppendWarnings...)

	return nil
}

func (s *memoryJobs) ListByOwner(_ context.Context, ownerID string, limit int) ([]*importer.ImportJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*importer.ImportJob
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, cloneJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryJobs) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CreatedAt.Before(cutoff) {
			delete(s.jobs, id)
			purged++
		}
	}
	return purged, nil
}

func (s *memoryCategories) ListByOwner(_ context.Context, ownerID string, recordType importer.RecordType) ([]importer.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []importer.Category
	for _, c := range s.categories {
		if c.OwnerID == ownerID && c.RecordType == recordType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memoryCategories) FindByNameAndOwner(_ context.Context, ownerID, name string, recordType importer.RecordType) (*importer.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.categories {
		if c.OwnerID == ownerID && c.RecordType == recordType && strings.EqualFold(c.Name, name) {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memoryCategories) Create(_ context.Context, category importer.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[category.ID] = category
	return nil
}

func (s *memoryVendors) ListByOwner(_ context.Context, ownerID string) ([]importer.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []importer.Vendor
	for _, v := range s.vendors {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *memoryVendors) FindByNameAndOwner(_ context.Context, ownerID, name string) (*importer.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.vendors {
		if v.OwnerID == ownerID && strings.EqualFold(v.Name, name) {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memoryVendors) Create(_ context.Context, vendor importer.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vendors[vendor.ID] = vendor
	return nil
}

// BulkInsert stores all records. The in-memory store has no per-record
// failure modes, so every record lands as an insert.
func (s *memoryRecords) BulkInsert(_ context.Context, records []importer.LedgerRecord) (*importer.BulkInsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		s.records[r.ID] = r
	}
	return &importer.BulkInsertResult{Inserted: len(records)}, nil
}

func (s *memoryRecords) Insert(_ context.Context, record importer.LedgerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	return nil
}

// RecordsByJob returns all ledger records persisted for a job. Test helper.
func (m *Memory) RecordsByJob(jobID string) []importer.LedgerRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []importer.LedgerRecord
	for _, r := range m.records {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out
}

// cloneJob deep-copies a job so callers never alias store-internal state.
func cloneJob(job *importer.ImportJob) *importer.ImportJob {
	out := *job
	out.Errors = append([]importer.RowError(nil), job.Errors...)
	out.Warnings = append([]importer.RowWarning(nil), job.Warnings...)
	out.FieldMapping = make(importer.FieldMapping, len(job.FieldMapping))
	for k, v := range job.FieldMapping {
		out.FieldMapping[k] = v
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}
