package importer

// resolver.go resolves free-text category and vendor names to stable IDs.
//
// A ReferenceCache belongs to exactly one job run. All of the owner's
// existing categories (scoped by record type) and vendors are loaded up
// front so the per-row hot path never queries the store. Lookups are
// case-insensitive; creation, when enabled, happens under the cache lock so
// concurrent extraction within a batch creates each name at most once.

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// importedDescription marks entities the resolver created on demand.
const importedDescription = "Auto-created during import"

// ReferenceCache is the per-job category/vendor resolution context. It is
// passed explicitly by parameter and must never be shared across jobs or
// owners.
type ReferenceCache struct {
	categories CategoryStore
	vendors    VendorStore

	ownerID    string
	recordType RecordType
	opts       ImportOptions

	mu        sync.Mutex
	catIDs    map[string]string // lower-cased name -> id
	vendIDs   map[string]string
	preloaded bool
}

// NewReferenceCache creates an empty cache scoped to one owner and record
// type. Call Preload before resolving.
func NewReferenceCache(categories CategoryStore, vendors VendorStore, ownerID string, recordType RecordType, opts ImportOptions) *ReferenceCache {
	return &ReferenceCache{
		categories: categories,
		vendors:    vendors,
		ownerID:    ownerID,
		recordType: recordType,
		opts:       opts,
		catIDs:     make(map[string]string),
		vendIDs:    make(map[string]string),
	}
}

// Preload loads all of the owner's existing categories and vendors into the
// cache. A failure here is structural: the job cannot run without it.
func (rc *ReferenceCache) Preload(ctx context.Context) error {
	cats, err := rc.categories.ListByOwner(ctx, rc.ownerID, rc.recordType)
	if err != nil {
		return fmt.Errorf("preload categories: %w", err)
	}
	vends, err := rc.vendors.ListByOwner(ctx, rc.ownerID)
	if err != nil {
		return fmt.Errorf("preload vendors: %w", err)
	}

	rc.mu.Lock()
	defer rc.mu.Unlock()
	for _, c := range cats {
		rc.catIDs[strings.ToLower(strings.TrimSpace(c.Name))] = c.ID
	}
	for _, v := range vends {
		rc.vendIDs[strings.ToLower(strings.TrimSpace(v.Name))] = v.ID
	}
	rc.preloaded = true
	return nil
}

// ResolveCategory maps a free-text category name to an ID. Returns "" with
// no error when the name is empty, or unknown and creation is disabled.
func (rc *ReferenceCache) ResolveCategory(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	key := strings.ToLower(name)

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if id, ok := rc.catIDs[key]; ok {
		return id, nil
	}
	if !rc.opts.CreateCategories {
		return "", nil
	}

	cat := Category{
		ID:          uuid.New().String(),
		OwnerID:     rc.ownerID,
		RecordType:  rc.recordType,
		Name:        name,
		Description: importedDescription,
		IsDefault:   false,
		CreatedAt:   time.Now(),
	}
	if err := rc.categories.Create(ctx, cat); err != nil {
		return "", fmt.Errorf("create category %q: %w", name, err)
	}

	rc.catIDs[key] = cat.ID
	return cat.ID, nil
}

// ResolveVendor maps a free-text vendor name to an ID, with the same
// semantics as ResolveCategory.
func (rc *ReferenceCache) ResolveVendor(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil
	}

	key := strings.ToLower(name)

	rc.mu.Lock()
	defer rc.mu.Unlock()

	if id, ok := rc.vendIDs[key]; ok {
		return id, nil
	}
	if !rc.opts.CreateVendors {
		return "", nil
	}

	vend := Vendor{
		ID:          uuid.New().String(),
		OwnerID:     rc.ownerID,
		Name:        name,
		Description: importedDescription,
		IsDefault:   false,
		CreatedAt:   time.Now(),
	}
	if err := rc.vendors.Create(ctx, vend); err != nil {
		return "", fmt.Errorf("create vendor %q: %w", name, err)
	}

	rc.vendIDs[key] = vend.ID
	return vend.ID, nil
}
