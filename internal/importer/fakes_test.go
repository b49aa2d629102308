package importer

// fakes_test.go holds in-package store fakes with scriptable failure modes
// so executor and service tests can exercise partial bulk failures, store
// outages, and terminal-state races without a database.

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type fakeJobStore struct {
	mu         sync.Mutex
	jobs       map[string]*ImportJob
	applies    int
	applyErr   error // returned by Apply when set
	applyErrOn int   // restrict applyErr to this call number (1-based); 0 = every call
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*ImportJob)}
}

func (s *fakeJobStore) Create(_ context.Context, job *ImportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = cloneFakeJob(job)
	return nil
}

func (s *fakeJobStore) Get(_ context.Context, id string) (*ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneFakeJob(job), nil
}

func (s *fakeJobStore) Apply(_ context.Context, id string, update JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applies++
	if s.applyErr != nil && (s.applyErrOn == 0 || s.applies == s.applyErrOn) {
		return s.applyErr
	}

	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status.Terminal() {
		return ErrJobTerminal
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

func (s *fakeJobStore) ListByOwner(_ context.Context, ownerID string, limit int) ([]*ImportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ImportJob
	for _, job := range s.jobs {
		if job.OwnerID == ownerID {
			out = append(out, cloneFakeJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeJobStore) DeleteTerminalOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
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

func cloneFakeJob(job *ImportJob) *ImportJob {
	out := *job
	out.Errors = append([]RowError(nil), job.Errors...)
	out.Warnings = append([]RowWarning(nil), job.Warnings...)
	return &out
}

type fakeCategoryStore struct {
	mu       sync.Mutex
	existing []Category
	created  []Category
	listErr  error
}

func (s *fakeCategoryStore) ListByOwner(_ context.Context, ownerID string, recordType RecordType) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Category
	for _, c := range append(append([]Category(nil), s.existing...), s.created...) {
		if c.OwnerID == ownerID && c.RecordType == recordType {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeCategoryStore) FindByNameAndOwner(_ context.Context, ownerID, name string, recordType RecordType) (*Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range append(append([]Category(nil), s.existing...), s.created...) {
		if c.OwnerID == ownerID && c.RecordType == recordType && equalFold(c.Name, name) {
			out := c
			return &out, nil
		}
	}
	return nil, nil
}

func (s *fakeCategoryStore) Create(_ context.Context, category Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, category)
	return nil
}

func (s *fakeCategoryStore) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

type fakeVendorStore struct {
	mu       sync.Mutex
	existing []Vendor
	created  []Vendor
	listErr  error
}

func (s *fakeVendorStore) ListByOwner(_ context.Context, ownerID string) ([]Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []Vendor
	for _, v := range append(append([]Vendor(nil), s.existing...), s.created...) {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *fakeVendorStore) FindByNameAndOwner(_ context.Context, ownerID, name string) (*Vendor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range append(append([]Vendor(nil), s.existing...), s.created...) {
		if v.OwnerID == ownerID && equalFold(v.Name, name) {
			out := v
			return &out, nil
		}
	}
	return nil, nil
}

func (s *fakeVendorStore) Create(_ context.Context, vendor Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, vendor)
	return nil
}

func (s *fakeVendorStore) createdCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.created)
}

// fakeRecordStore scripts bulk-insert outcomes per call.
type fakeRecordStore struct {
	mu        sync.Mutex
	inserted  []LedgerRecord
	bulkCalls int

	bulkErr     error         // structural error on every bulk call
	failIndexes map[int][]int // bulk call number (1-based) -> failing record indexes
	insertErr   error         // error for every per-record Insert
	onBulk      func(call int)
}

func (s *fakeRecordStore) BulkInsert(_ context.Context, records []LedgerRecord) (*BulkInsertResult, error) {
	s.mu.Lock()
	s.bulkCalls++
	call := s.bulkCalls
	hook := s.onBulk
	s.mu.Unlock()

	if hook != nil {
		hook(call)
	}

	if s.bulkErr != nil {
		return nil, s.bulkErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	failing := make(map[int]bool)
	for _, i := range s.failIndexes[call] {
		failing[i] = true
	}

	res := &BulkInsertResult{}
	for i, r := range records {
		if failing[i] {
			res.Failed = append(res.Failed, RecordFailure{Index: i, Message: fmt.Sprintf("constraint violation on record %d", i)})
			continue
		}
		s.inserted = append(s.inserted, r)
		res.Inserted++
	}
	return res, nil
}

func (s *fakeRecordStore) Insert(_ context.Context, record LedgerRecord) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, record)
	return nil
}

func (s *fakeRecordStore) insertedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
