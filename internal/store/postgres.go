package store

// postgres.go is the production implementation of the importer store
// interfaces on PostgreSQL via pgx.
//
// Job mutations are expressed as a single UPDATE whose SET list is built
// from the partial update, guarded by a status predicate so terminal jobs
// are immutable at the database level even under concurrent writers.
// Error and warning arrays live in jsonb columns and are appended with the
// || operator, never rewritten.

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerkit/importer/internal/importer"
)

// Postgres exposes the per-domain store interfaces over one connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

type pgJobs Postgres
type pgCategories Postgres
type pgVendors Postgres
type pgRecords Postgres

var (
	_ importer.JobStore      = (*pgJobs)(nil)
	_ importer.CategoryStore = (*pgCategories)(nil)
	_ importer.VendorStore   = (*pgVendors)(nil)
	_ importer.RecordStore   = (*pgRecords)(nil)
)

// Jobs returns the job-store view.
func (p *Postgres) Jobs() importer.JobStore { return (*pgJobs)(p) }

// Categories returns the category-store view.
func (p *Postgres) Categories() importer.CategoryStore { return (*pgCategories)(p) }

// Vendors returns the vendor-store view.
func (p *Postgres) Vendors() importer.VendorStore { return (*pgVendors)(p) }

// Records returns the record-store view.
func (p *Postgres) Records() importer.RecordStore { return (*pgRecords)(p) }

const jobColumns = `id, owner_id, record_type, status, total_rows, processed_rows,
	successful_rows, failed_rows, progress,
	created_count, updated_count, skipped_count, failed_count,
	errors, warnings, field_mapping, options, created_at, completed_at`

func (s *pgJobs) Create(ctx context.Context, job *importer.ImportJob) error {
	mapping, err := json.Marshal(job.FieldMapping)
	if err != nil {
		return fmt.Errorf("marshal field mapping: %w", err)
	}
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO import_jobs (
			id, owner_id, record_type, status, total_rows,
			field_mapping, options, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID, job.OwnerID, string(job.RecordType), string(job.Status),
		job.TotalRows, mapping, options, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *pgJobs) Get(ctx context.Context, id string) (*importer.ImportJob, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM import_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err == pgx.ErrNoRows {
		return nil, importer.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Apply builds one UPDATE from the partial update. The status predicate
// makes the mutation a no-op on terminal jobs; the zero-rows case is then
// disambiguated into ErrJobNotFound or ErrJobTerminal.
func (s *pgJobs) Apply(ctx context.Context, id string, update importer.JobUpdate) error {
	if update.IsZero() {
		return nil
	}

	set := []string{}
	args := []any{id}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if update.Status != nil {
		set = append(set, "status = "+arg(string(*update.Status)))
	}
	if update.Progress != nil {
		set = append(set, "progress = "+arg(*update.Progress))
	}
	if update.CompletedAt != nil {
		set = append(set, "completed_at = "+arg(*update.CompletedAt))
	}
	if update.AddProcessed != 0 {
		set = append(set, "processed_rows = processed_rows + "+arg(update.AddProcessed))
	}
	if update.AddSuccessful != 0 {
		set = append(set, "successful_rows = successful_rows + "+arg(update.AddSuccessful))
	}
	if update.AddFailed != 0 {
		set = append(set, "failed_rows = failed_rows + "+arg(update.AddFailed))
	}
	if update.AddCreated != 0 {
		set = append(set, "created_count = created_count + "+arg(update.AddCreated))
	}
	if update.AddUpdated != 0 {
		set = append(set, "updated_count = updated_count + "+arg(update.AddUpdated))
	}
	if update.AddSkipped != 0 {
		set = append(set, "skipped_count = skipped_count + "+arg(update.AddSkipped))
	}
	if update.AddResultFail != 0 {
		set = append(set, "failed_count = failed_count + "+arg(update.AddResultFail))
	}
	if len(update.AppendErrors) > 0 {
		payload, err := json.Marshal(update.AppendErrors)
		if err != nil {
			return fmt.Errorf("marshal errors: %w", err)
		}
		set = append(set, "errors = errors || "+arg(payload)+"::jsonb")
	}
	if len(update.AppendWarnings) > 0 {
		payload, err := json.Marshal(update.AppendWarnings)
		if err != nil {
			return fmt.Errorf("marshal warnings: %w", err)
		}
		set = append(set, "warnings = warnings || "+arg(payload)+"::jsonb")
	}

	query := `UPDATE import_jobs SET ` + strings.Join(set, ", ") +
		` WHERE id = $1 AND status NOT IN ('completed', 'failed', 'cancelled')`

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("apply job update: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM import_jobs WHERE id = $1`, id).Scan(&status)
	if err == pgx.ErrNoRows {
		return importer.ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("apply job update: %w", err)
	}
	return importer.ErrJobTerminal
}

func (s *pgJobs) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*importer.ImportJob, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM import_jobs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*importer.ImportJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("list jobs: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *pgJobs) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM import_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND created_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete terminal jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// scanJob reads one job row, decoding the jsonb columns.
func scanJob(row pgx.Row) (*importer.ImportJob, error) {
	var (
		job      importer.ImportJob
		errsRaw  []byte
		warnsRaw []byte
		mapRaw   []byte
		optsRaw  []byte
	)

	err := row.Scan(
		&job.ID, &job.OwnerID, &job.RecordType, &job.Status, &job.TotalRows,
		&job.ProcessedRows, &job.SuccessfulRows, &job.FailedRows, &job.Progress,
		&job.Results.Created, &job.Results.Updated, &job.Results.Skipped, &job.Results.Failed,
		&errsRaw, &warnsRaw, &mapRaw, &optsRaw, &job.CreatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Errors = []importer.RowError{}
	job.Warnings = []importer.RowWarning{}
	if err := json.Unmarshal(errsRaw, &job.Errors); err != nil {
		return nil, fmt.Errorf("decode errors: %w", err)
	}
	if err := json.Unmarshal(warnsRaw, &job.Warnings); err != nil {
		return nil, fmt.Errorf("decode warnings: %w", err)
	}
	if err := json.Unmarshal(mapRaw, &job.FieldMapping); err != nil {
		return nil, fmt.Errorf("decode field mapping: %w", err)
	}
	if err := json.Unmarshal(optsRaw, &job.Options); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return &job, nil
}

func (s *pgCategories) ListByOwner(ctx context.Context, ownerID string, recordType importer.RecordType) ([]importer.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, record_type, name, description, is_default, created_at
		FROM categories
		WHERE owner_id = $1 AND record_type = $2`,
		ownerID, string(recordType),
	)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []importer.Category
	for rows.Next() {
		var c importer.Category
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.RecordType, &c.Name, &c.Description, &c.IsDefault, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("list categories: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *pgCategories) FindByNameAndOwner(ctx context.Context, ownerID, name string, recordType importer.RecordType) (*importer.Category, error) {
	var c importer.Category
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, record_type, name, description, is_default, created_at
		FROM categories
		WHERE owner_id = $1 AND record_type = $2 AND lower(name) = lower($3)`,
		ownerID, string(recordType), name,
	).Scan(&c.ID, &c.OwnerID, &c.RecordType, &c.Name, &c.Description, &c.IsDefault, &c.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find category: %w", err)
	}
	return &c, nil
}

func (s *pgCategories) Create(ctx context.Context, category importer.Category) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO categories (id, owner_id, record_type, name, description, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		category.ID, category.OwnerID, string(category.RecordType),
		category.Name, category.Description, category.IsDefault, category.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	return nil
}

func (s *pgVendors) ListByOwner(ctx context.Context, ownerID string) ([]importer.Vendor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner_id, name, description, is_default, created_at
		FROM vendors
		WHERE owner_id = $1`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}
	defer rows.Close()

	var out []importer.Vendor
	for rows.Next() {
		var v importer.Vendor
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Description, &v.IsDefault, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("list vendors: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *pgVendors) FindByNameAndOwner(ctx context.Context, ownerID, name string) (*importer.Vendor, error) {
	var v importer.Vendor
	err := s.pool.QueryRow(ctx, `
		SELECT id, owner_id, name, description, is_default, created_at
		FROM vendors
		WHERE owner_id = $1 AND lower(name) = lower($2)`,
		ownerID, name,
	).Scan(&v.ID, &v.OwnerID, &v.Name, &v.Description, &v.IsDefault, &v.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vendor: %w", err)
	}
	return &v, nil
}

func (s *pgVendors) Create(ctx context.Context, vendor importer.Vendor) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vendors (id, owner_id, name, description, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		vendor.ID, vendor.OwnerID, vendor.Name, vendor.Description, vendor.IsDefault, vendor.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create vendor: %w", err)
	}
	return nil
}

const insertRecordSQL = `
	INSERT INTO ledger_records (
		id, owner_id, record_type, description, amount, date,
		category_id, vendor_id, recurring, job_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// BulkInsert pipelines all inserts in one batch round trip. pgx runs the
// batch in an implicit transaction, so any statement error poisons the rest
// of the pipeline; that case is reported as a structural error and callers
// retry the records individually.
func (s *pgRecords) BulkInsert(ctx context.Context, records []importer.LedgerRecord) (*importer.BulkInsertResult, error) {
	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insertRecordSQL, recordArgs(r)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	res := &importer.BulkInsertResult{}
	for range records {
		if _, err := br.Exec(); err != nil {
			return nil, fmt.Errorf("bulk insert: %w", err)
		}
		res.Inserted++
	}
	return res, nil
}

func (s *pgRecords) Insert(ctx context.Context, record importer.LedgerRecord) error {
	_, err := s.pool.Exec(ctx, insertRecordSQL, recordArgs(record)...)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func recordArgs(r importer.LedgerRecord) []any {
	return []any{
		r.ID, r.OwnerID, string(r.RecordType), r.Description,
		r.Amount.String(), r.Date,
		nullIfEmpty(r.CategoryID), nullIfEmpty(r.VendorID),
		r.Recurring, r.JobID, r.CreatedAt,
	}
}

// nullIfEmpty maps "" to SQL NULL for optional foreign keys.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
