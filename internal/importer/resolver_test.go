package importer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func testRefCache(cats *fakeCategoryStore, vends *fakeVendorStore, opts ImportOptions) *ReferenceCache {
	return NewReferenceCache(cats, vends, "owner-1", RecordExpense, opts)
}

func TestReferenceCache_ResolvesExistingCaseInsensitive(t *testing.T) {
	cats := &fakeCategoryStore{existing: []Category{
		{ID: "cat-1", OwnerID: "owner-1", RecordType: RecordExpense, Name: "Travel", CreatedAt: time.Now()},
	}}
	vends := &fakeVendorStore{}

	rc := testRefCache(cats, vends, ImportOptions{CreateCategories: true})
	if err := rc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	for _, name := range []string{"Travel", "travel", "TRAVEL", "  travel  "} {
		id, err := rc.ResolveCategory(context.Background(), name)
		if err != nil {
			t.Fatalf("ResolveCategory(%q) error = %v", name, err)
		}
		if id != "cat-1" {
			t.Errorf("ResolveCategory(%q) = %q, want cat-1", name, id)
		}
	}

	if got := cats.createdCount(); got != 0 {
		t.Errorf("created %d categories, want 0", got)
	}
}

func TestReferenceCache_CreatesOnce(t *testing.T) {
	cats := &fakeCategoryStore{}
	vends := &fakeVendorStore{}

	rc := testRefCache(cats, vends, ImportOptions{CreateCategories: true})
	if err := rc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	first, err := rc.ResolveCategory(context.Background(), "Groceries")
	if err != nil {
		t.Fatalf("ResolveCategory() error = %v", err)
	}
	second, err := rc.ResolveCategory(context.Background(), "groceries")
	if err != nil {
		t.Fatalf("ResolveCategory() error = %v", err)
	}

	if first == "" || first != second {
		t.Errorf("ids = %q, %q, want one stable non-empty id", first, second)
	}
	if got := cats.createdCount(); got != 1 {
		t.Errorf("created %d categories, want 1", got)
	}
}

func TestReferenceCache_CreateDisabled(t *testing.T) {
	cats := &fakeCategoryStore{}
	vends := &fakeVendorStore{}

	rc := testRefCache(cats, vends, ImportOptions{})
	if err := rc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	id, err := rc.ResolveCategory(context.Background(), "Unknown")
	if err != nil {
		t.Fatalf("ResolveCategory() error = %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty (creation disabled)", id)
	}
	if got := cats.createdCount(); got != 0 {
		t.Errorf("created %d categories, want 0", got)
	}
}

func TestReferenceCache_EmptyName(t *testing.T) {
	rc := testRefCache(&fakeCategoryStore{}, &fakeVendorStore{}, ImportOptions{CreateCategories: true, CreateVendors: true})
	if err := rc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	if id, err := rc.ResolveCategory(context.Background(), "   "); err != nil || id != "" {
		t.Errorf("ResolveCategory(blank) = (%q, %v), want (\"\", nil)", id, err)
	}
	if id, err := rc.ResolveVendor(context.Background(), ""); err != nil || id != "" {
		t.Errorf("ResolveVendor(blank) = (%q, %v), want (\"\", nil)", id, err)
	}
}

func TestReferenceCache_VendorCreation(t *testing.T) {
	vends := &fakeVendorStore{existing: []Vendor{
		{ID: "vend-1", OwnerID: "owner-1", Name: "Amazon", CreatedAt: time.Now()},
	}}

	rc := testRefCache(&fakeCategoryStore{}, vends, ImportOptions{CreateVendors: true})
	if err := rc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	id, err := rc.ResolveVendor(context.Background(), "AMAZON")
	if err != nil {
		t.Fatalf("ResolveVendor() error = %v", err)
	}
	if id != "vend-1" {
		t.Errorf("ResolveVendor() = %q, want vend-1", id)
	}

	created, err := rc.ResolveVendor(context.Background(), "Netflix")
	if err != nil {
		t.Fatalf("ResolveVendor() error = %v", err)
	}
	if created == "" {
		t.Error("ResolveVendor() returned empty id for created vendor")
	}
	if got := vends.createdCount(); got != 1 {
		t.Errorf("created %d vendors, want 1", got)
	}
}

func TestReferenceCache_PreloadFailure(t *testing.T) {
	cats := &fakeCategoryStore{listErr: errors.New("connection refused")}

	rc := testRefCache(cats, &fakeVendorStore{}, ImportOptions{})
	if err := rc.Preload(context.Background()); err == nil {
		t.Fatal("Preload() expected error")
	}
}

func TestReferenceCache_ConcurrentResolveCreatesOnce(t *testing.T) {
	cats := &fakeCategoryStore{}

	rc := testRefCache(cats, &fakeVendorStore{}, ImportOptions{CreateCategories: true})
	if err := rc.Preload(context.Background()); err != nil {
		t.Fatalf("Preload() error = %v", err)
	}

	var wg sync.WaitGroup
	ids := make([]string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := rc.ResolveCategory(context.Background(), "Utilities")
			if err != nil {
				t.Errorf("ResolveCategory() error = %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("ids diverge: %q vs %q", id, ids[0])
		}
	}
	if got := cats.createdCount(); got != 1 {
		t.Errorf("created %d categories, want 1", got)
	}
}
