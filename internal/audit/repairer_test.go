package audit

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/classifier"
	"catalog-service/internal/models"
)

func newTestRepairer(store *fakeStore) *Repairer {
	logger := testLogger()
	engine := classifier.NewEngine(store, nil, logger, nil)
	return NewRepairer(store, engine, logger)
}

func TestRepairRejectsBadPage(t *testing.T) {
	repairer := newTestRepairer(newFakeStore())

	_, err := repairer.Repair(context.Background(), ClassOrphan, -1, 10)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = repairer.Repair(context.Background(), ClassOrphan, 0, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = repairer.Repair(context.Background(), Class("ghost"), 0, 10)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRepairOrphansClassifies(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Raptor C18 Column 4.6x150mm", "Restek", nil)
	repairer := newTestRepairer(store)

	result, err := repairer.Repair(context.Background(), ClassOrphan, 0, 10)
	require.NoError(t, err)

	assert.Equal(t, ClassOrphan, result.Class)
	assert.Equal(t, int64(1), result.Total)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Zero(t, result.ErrorCount)
	assert.False(t, result.HasMore)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "REST-0001", result.Items[0].ProductID)
	assert.Equal(t, "classified", result.Items[0].Action)

	assocs := store.assocsFor(1)
	require.Len(t, assocs, 1)
	assert.Equal(t, store.slugs["c18-columns"], assocs[0].CategoryID)
	assert.True(t, assocs[0].IsPrimary)
	require.NotNil(t, store.products[1].CategoryID)
	assert.Equal(t, store.slugs["c18-columns"], *store.products[1].CategoryID)
}

func TestRepairDuplicatesKeepsPrimaryRow(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Force C18 Column", "Restek", uintPtr(1))
	plain := store.addAssoc(1, 1, false)
	primary := store.addAssoc(1, 1, true)
	other := store.addAssoc(1, 13, false)
	repairer := newTestRepairer(store)

	result, err := repairer.Repair(context.Background(), ClassDuplicate, 0, 10)
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, "deleted 1 duplicate rows", result.Items[0].Action)

	assocs := store.assocsFor(1)
	require.Len(t, assocs, 2)
	ids := []uint{assocs[0].ID, assocs[1].ID}
	assert.Contains(t, ids, primary)
	assert.Contains(t, ids, other)
	assert.NotContains(t, ids, plain)
}

func TestRepairDuplicatesFallsBackToLowestID(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Force C18 Column", "Restek", nil)
	first := store.addAssoc(1, 1, false)
	second := store.addAssoc(1, 1, false)
	repairer := newTestRepairer(store)

	_, err := repairer.Repair(context.Background(), ClassDuplicate, 0, 10)
	require.NoError(t, err)

	assocs := store.assocsFor(1)
	require.Len(t, assocs, 1)
	assert.Equal(t, first, assocs[0].ID)
	_ = second
}

func TestRepairMultiPrimaryPrefersMirrorMatch(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Ultra IBD Column", "Restek", uintPtr(5))
	demoted := store.addAssoc(1, 1, true)
	kept := store.addAssoc(1, 5, true)
	repairer := newTestRepairer(store)

	result, err := repairer.Repair(context.Background(), ClassMultiPrimary, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "demoted 1 extra primaries", result.Items[0].Action)

	for _, a := range store.assocsFor(1) {
		switch a.ID {
		case kept:
			assert.True(t, a.IsPrimary)
		case demoted:
			assert.False(t, a.IsPrimary)
		}
	}
	assert.Equal(t, uint(5), *store.products[1].CategoryID)
}

func TestRepairMultiPrimaryFallsBackToLowestID(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Ultra IBD Column", "Restek", nil)
	kept := store.addAssoc(1, 1, true)
	store.addAssoc(1, 5, true)
	repairer := newTestRepairer(store)

	_, err := repairer.Repair(context.Background(), ClassMultiPrimary, 0, 10)
	require.NoError(t, err)

	var primaries []uint
	for _, a := range store.assocsFor(1) {
		if a.IsPrimary {
			primaries = append(primaries, a.ID)
		}
	}
	assert.Equal(t, []uint{kept}, primaries)
	require.NotNil(t, store.products[1].CategoryID)
	assert.Equal(t, uint(1), *store.products[1].CategoryID)
}

func TestRepairMismatchFollowsPrimary(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Topaz Liner", "Restek", uintPtr(9))
	store.addAssoc(1, 12, true)
	repairer := newTestRepairer(store)

	result, err := repairer.Repair(context.Background(), ClassMismatch, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, "category id updated", result.Items[0].Action)
	assert.Equal(t, uint(12), *store.products[1].CategoryID)
}

func TestRepairMismatchFillsNilMirror(t *testing.T) {
	store := newFakeStore()
	store.addProduct(1, "REST-0001", "Topaz Liner", "Restek", nil)
	store.addAssoc(1, 12, true)
	repairer := newTestRepairer(store)

	result, err := repairer.Repair(context.Background(), ClassMismatch, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.NotNil(t, store.products[1].CategoryID)
	assert.Equal(t, uint(12), *store.products[1].CategoryID)
}

func TestRepairPagesResume(t *testing.T) {
	store := newFakeStore()
	for i := uint(1); i <= 3; i++ {
		store.addProduct(i, fmt.Sprintf("REST-%04d", i), "Topaz Liner", "Restek", uintPtr(9))
		store.addAssoc(i, 12, true)
	}
	repairer := newTestRepairer(store)

	first, err := repairer.Repair(context.Background(), ClassMismatch, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), first.Total)
	assert.Equal(t, 2, first.Processed)
	assert.True(t, first.HasMore)
	assert.Equal(t, 2, first.NextOffset)

	// Repaired products leave the violation set, so the next sweep starts
	// over at offset zero.
	second, err := repairer.Repair(context.Background(), ClassMismatch, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.Total)
	assert.Equal(t, 1, second.Processed)
	assert.False(t, second.HasMore)

	for i := uint(1); i <= 3; i++ {
		assert.Equal(t, uint(12), *store.products[i].CategoryID)
	}
}
