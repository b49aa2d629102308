// Package importer provides the business logic for bulk financial-record
// imports: file parsing, column detection, row validation, reference
// resolution, batched persistence, and asynchronous job tracking.
// This package has no HTTP dependencies and can be used by any frontend.
package importer

import (
	"time"

	"github.com/shopspring/decimal"
)

// RecordType distinguishes the two ledger record kinds an import can target.
type RecordType string

const (
	RecordIncome  RecordType = "income"
	RecordExpense RecordType = "expense"
)

// Valid reports whether the record type is one of the supported kinds.
func (rt RecordType) Valid() bool {
	return rt == RecordIncome || rt == RecordExpense
}

// Semantic fields a spreadsheet column can map to.
const (
	FieldDate        = "date"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldCategory    = "category"
	FieldVendor      = "vendor"
	FieldRecurring   = "recurring"
)

// FieldMapping maps a source column name to a semantic field name.
// It is confirmed by the caller before a job starts and fixed afterwards.
type FieldMapping map[string]string

// ColumnFor returns the source column mapped to the given semantic field,
// or "" if no column is mapped to it.
func (m FieldMapping) ColumnFor(field string) string {
	for col, f := range m {
		if f == field {
			return col
		}
	}
	return ""
}

// ParsedRow is an ephemeral string-keyed record produced by the parser.
// Keys are the (trimmed, unique) header names. Never persisted.
type ParsedRow map[string]string

// ParsedFile is the output of parsing a spreadsheet file.
type ParsedFile struct {
	Headers   []string
	Rows      []ParsedRow
	TotalRows int
	Warnings  []string
}

// ImportOptions control how a job treats references, invalid rows, and dates.
// Immutable once a job is created.
type ImportOptions struct {
	UpdateExisting   bool   `json:"updateExisting"`
	CreateCategories bool   `json:"createCategories"`
	CreateVendors    bool   `json:"createVendors"`
	SkipInvalidRows  bool   `json:"skipInvalidRows"`
	DateFormat       string `json:"dateFormat,omitempty"`
}

// JobStatus is the lifecycle state of an import job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are immutable.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// RowError is a row-scoped error accumulated on a job. Row numbers are
// 1-based and header-offset adjusted (first data row is row 2). Job-level
// errors use row 0.
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// RowWarning is a non-blocking row-scoped notice accumulated on a job.
type RowWarning struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ImportResults summarizes persistence outcomes for a job.
type ImportResults struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ImportJob is the durable record of one asynchronous import execution.
// Created at submission, mutated only through JobStore.Apply until a
// terminal state is reached, immutable afterwards.
type ImportJob struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"ownerId"`
	RecordType     RecordType    `json:"recordType"`
	Status         JobStatus     `json:"status"`
	TotalRows      int           `json:"totalRows"`
	ProcessedRows  int           `json:"processedRows"`
	SuccessfulRows int           `json:"successfulRows"`
	FailedRows     int           `json:"failedRows"`
	Progress       int           `json:"progress"`
	Results        ImportResults `json:"results"`
	Errors         []RowError    `json:"errors"`
	Warnings       []RowWarning  `json:"warnings"`
	FieldMapping   FieldMapping  `json:"fieldMapping"`
	Options        ImportOptions `json:"options"`
	CreatedAt      time.Time     `json:"createdAt"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
}

// JobUpdate is an atomic partial mutation of a job record. Counter fields
// are increments, slices are appends, pointers are absolute sets. A zero
// JobUpdate is a no-op.
type JobUpdate struct {
	Status         *JobStatus
	Progress       *int
	AddProcessed   int
	AddSuccessful  int
	AddFailed      int
	AddCreated     int
	AddUpdated     int
	AddSkipped     int
	AddResultFail  int
	AppendErrors   []RowError
	AppendWarnings []RowWarning
	CompletedAt    *time.Time
}

// IsZero reports whether applying the update would change nothing.
func (u JobUpdate) IsZero() bool {
	return u.Status == nil && u.Progress == nil && u.CompletedAt == nil &&
		u.AddProcessed == 0 && u.AddSuccessful == 0 && u.AddFailed == 0 &&
		u.AddCreated == 0 && u.AddUpdated == 0 && u.AddSkipped == 0 &&
		u.AddResultFail == 0 &&
		len(u.AppendErrors) == 0 && len(u.AppendWarnings) == 0
}

// Category is an externally owned reference entity scoped by owner.
// The importer only reads or creates categories.
type Category struct {
	ID          string
	OwnerID     string
	RecordType  RecordType
	Name        string
	Description string
	IsDefault   bool
	CreatedAt   time.Time
}

// Vendor is an externally owned reference entity scoped by owner.
type Vendor struct {
	ID          string
	OwnerID     string
	Name        string
	Description string
	IsDefault   bool
	CreatedAt   time.Time
}

// LedgerRecord is one validated income/expense entry produced by extraction
// and persisted by the batch executor.
type LedgerRecord struct {
	ID          string
	OwnerID     string
	RecordType  RecordType
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	CategoryID  string
	VendorID    string
	Recurring   bool
	JobID       string
	CreatedAt   time.Time
}

// SourceRow pairs a parsed row with its original spreadsheet row number so
// error attribution survives filtering and concurrent extraction.
type SourceRow struct {
	Line int
	Row  ParsedRow
}
