package importer

// stores.go declares the persistence interfaces the importer consumes.
// Implementations live in internal/store (Postgres and in-memory); the
// importer only depends on these contracts.

import (
	"context"
	"time"
)

// JobStore is the durable record of import jobs. Mutations go through Apply
// as atomic partial updates (counter increments, error-array appends), never
// full-document overwrites, so interleaved progress writes are safe.
type JobStore interface {
	Create(ctx context.Context, job *ImportJob) error
	Get(ctx context.Context, id string) (*ImportJob, error)

	// Apply performs an atomic partial update. It returns ErrJobNotFound for
	// unknown IDs and ErrJobTerminal when the job has already reached a
	// terminal state.
	Apply(ctx context.Context, id string, update JobUpdate) error

	// ListByOwner returns the owner's most recent jobs, newest first.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]*ImportJob, error)

	// DeleteTerminalOlderThan purges terminal jobs created before the cutoff
	// and returns how many were removed.
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// CategoryStore reads and creates owner-scoped categories. Name uniqueness
// per owner is case-insensitive.
type CategoryStore interface {
	ListByOwner(ctx context.Context, ownerID string, recordType RecordType) ([]Category, error)
	FindByNameAndOwner(ctx context.Context, ownerID, name string, recordType RecordType) (*Category, error)
	Create(ctx context.Context, category Category) error
}

// VendorStore reads and creates owner-scoped vendors.
type VendorStore interface {
	ListByOwner(ctx context.Context, ownerID string) ([]Vendor, error)
	FindByNameAndOwner(ctx context.Context, ownerID, name string) (*Vendor, error)
	Create(ctx context.Context, vendor Vendor) error
}

// RecordFailure reports one record that a bulk insert could not persist.
// Index refers to the position in the submitted slice.
type RecordFailure struct {
	Index   int
	Message string
}

// BulkInsertResult reports the partial-success outcome of a bulk insert.
type BulkInsertResult struct {
	Inserted int
	Updated  int
	Skipped  int
	Failed   []RecordFailure
}

// RecordStore persists ledger records. BulkInsert is unordered: it continues
// past individual record failures and reports them per record. A non-nil
// error means the call failed structurally and nothing can be assumed about
// individual records; callers fall back to Insert.
type RecordStore interface {
	BulkInsert(ctx context.Context, records []LedgerRecord) (*BulkInsertResult, error)
	Insert(ctx context.Context, record LedgerRecord) error
}
