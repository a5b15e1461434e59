package classifier

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
)

// fakeStore is an in-memory Store mirroring the repository's reconcile
// semantics.
type fakeStore struct {
	products    map[string]*models.Product // by external id
	slugs       map[string]uint
	assocs      []models.ProductCategory
	nextAssocID uint
	applyCalls  int
	conflictsOn int // fail the nth apply call with ErrConflict (1-based)
}

func newFakeStore() *fakeStore {
	slugs := map[string]uint{}
	for i, slug := range []string{
		"c18-columns", "c8-columns", "silica-columns", "phenyl-columns",
		"hilic-columns", "cyano-columns", "c4-columns", "pfp-columns",
		"amino-columns", "diol-columns", "c30-columns", "other-columns",
		"guard-columns", "spe-cartridges", "syringe-filters", "vials",
		"caps-septa", "syringes-needles", "fittings-tubing",
	} {
		slugs[slug] = uint(i + 1)
	}
	return &fakeStore{
		products:    make(map[string]*models.Product),
		slugs:       slugs,
		nextAssocID: 1,
	}
}

func (s *fakeStore) addProduct(p models.Product) *models.Product {
	cp := p
	s.products[p.ProductID] = &cp
	return &cp
}

func (s *fakeStore) addAssociation(productID, categoryID uint, primary bool) uint {
	id := s.nextAssocID
	s.nextAssocID++
	s.assocs = append(s.assocs, models.ProductCategory{
		ID: id, ProductID: productID, CategoryID: categoryID, IsPrimary: primary,
	})
	return id
}

func (s *fakeStore) GetProductByProductID(_ context.Context, productID string) (*models.Product, error) {
	p, ok := s.products[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *fakeStore) CategoryIDBySlug(_ context.Context, slug string) (uint, error) {
	id, ok := s.slugs[slug]
	if !ok {
		return 0, fmt.Errorf("category slug %s: %w", slug, models.ErrNotFound)
	}
	return id, nil
}

func (s *fakeStore) Associations(_ context.Context, productID uint) ([]models.ProductCategory, error) {
	var out []models.ProductCategory
	for _, a := range s.assocs {
		if a.ProductID == productID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ApplyClassification(_ context.Context, productID, primaryCategoryID uint, demoteIDs, removeIDs []uint) error {
	s.applyCalls++
	if s.conflictsOn == s.applyCalls {
		return models.ErrConflict
	}

	demote := map[uint]bool{}
	for _, id := range demoteIDs {
		demote[id] = true
	}
	remove := map[uint]bool{}
	for _, id := range removeIDs {
		remove[id] = true
	}

	kept := s.assocs[:0]
	upserted := false
	for _, a := range s.assocs {
		if remove[a.ID] {
			continue
		}
		if demote[a.ID] {
			a.IsPrimary = false
		}
		if a.ProductID == productID && a.CategoryID == primaryCategoryID {
			a.IsPrimary = true
			upserted = true
		}
		kept = append(kept, a)
	}
	s.assocs = kept
	if !upserted {
		s.addAssociation(productID, primaryCategoryID, true)
	}

	for _, p := range s.products {
		if p.ID == productID {
			cid := primaryCategoryID
			p.CategoryID = &cid
		}
	}
	return nil
}

func (s *fakeStore) OrphanProductIDs(_ context.Context, offset, limit int) ([]string, int64, error) {
	associated := map[uint]bool{}
	for _, a := range s.assocs {
		associated[a.ProductID] = true
	}
	var orphans []string
	for _, p := range s.products {
		if p.Status == models.ProductStatusActive && !associated[p.ID] {
			orphans = append(orphans, p.ProductID)
		}
	}
	sort.Strings(orphans)
	total := int64(len(orphans))
	if offset >= len(orphans) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(orphans) {
		end = len(orphans)
	}
	return orphans[offset:end], total, nil
}

func newTestEngine(store *fakeStore) *Engine {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewEngine(store, DefaultRuleset(), logger, nil)
}

func TestClassifyEndToEnd(t *testing.T) {
	store := newFakeStore()
	store.addProduct(models.Product{
		ID:        1,
		ProductID: "X-1",
		Brand:     "Restek",
		Name:      "Raptor C18 column 4.6x150mm, 2.7um",
		Status:    models.ProductStatusActive,
	})

	engine := newTestEngine(store)
	res, err := engine.Classify(context.Background(), "X-1")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, "c18-columns", res.CategorySlug)
	assert.Equal(t, store.slugs["c18-columns"], res.CategoryID)

	assocs, _ := store.Associations(context.Background(), 1)
	require.Len(t, assocs, 1)
	assert.True(t, assocs[0].IsPrimary)
	assert.Equal(t, store.slugs["c18-columns"], assocs[0].CategoryID)

	product := store.products["X-1"]
	require.NotNil(t, product.CategoryID)
	assert.Equal(t, store.slugs["c18-columns"], *product.CategoryID)
}

func TestClassifyIdempotent(t *testing.T) {
	store := newFakeStore()
	store.addProduct(models.Product{
		ID:        1,
		ProductID: "X-1",
		Brand:     "Restek",
		Name:      "Raptor ARC-18 2.7um",
		Status:    models.ProductStatusActive,
	})

	engine := newTestEngine(store)

	first, err := engine.Classify(context.Background(), "X-1")
	require.NoError(t, err)
	assert.True(t, first.Changed)
	writesAfterFirst := store.applyCalls

	second, err := engine.Classify(context.Background(), "X-1")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, first.CategoryID, second.CategoryID)
	assert.Equal(t, writesAfterFirst, store.applyCalls, "second classification must not write")
}

func TestClassifyDemotesOldPrimaryStillInMatchSet(t *testing.T) {
	store := newFakeStore()
	store.addProduct(models.Product{
		ID:        1,
		ProductID: "X-2",
		Brand:     "Restek",
		Name:      "Raptor Polar X 2.7um 100x2.1mm",
		Status:    models.ProductStatusActive,
	})
	// Previously classified as the brand default.
	c18 := store.slugs["c18-columns"]
	store.addAssociation(1, c18, true)
	store.products["X-2"].CategoryID = &c18

	engine := newTestEngine(store)
	res, err := engine.Classify(context.Background(), "X-2")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, "hilic-columns", res.CategorySlug)

	assocs, _ := store.Associations(context.Background(), 1)
	require.Len(t, assocs, 2)
	byCategory := map[uint]models.ProductCategory{}
	for _, a := range assocs {
		byCategory[a.CategoryID] = a
	}
	assert.True(t, byCategory[store.slugs["hilic-columns"]].IsPrimary)
	// The old primary stays as a secondary because c18 is still in the
	// match set for this name.
	assert.False(t, byCategory[c18].IsPrimary)
	assert.Equal(t, store.slugs["hilic-columns"], *store.products["X-2"].CategoryID)
}

func TestClassifyRemovesOldPrimaryOutsideMatchSet(t *testing.T) {
	store := newFakeStore()
	store.addProduct(models.Product{
		ID:        1,
		ProductID: "X-3",
		Brand:     "Phenomenex",
		Name:      "Luna C18(2) 5um 250x4.6mm",
		Status:    models.ProductStatusActive,
	})
	// Misclassified into an accessory category.
	vials := store.slugs["vials"]
	store.addAssociation(1, vials, true)
	store.products["X-3"].CategoryID = &vials

	engine := newTestEngine(store)
	res, err := engine.Classify(context.Background(), "X-3")
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, "c18-columns", res.CategorySlug)

	assocs, _ := store.Associations(context.Background(), 1)
	require.Len(t, assocs, 1)
	assert.Equal(t, store.slugs["c18-columns"], assocs[0].CategoryID)
	assert.True(t, assocs[0].IsPrimary)
}

func TestClassifyConflictRetry(t *testing.T) {
	store := newFakeStore()
	store.addProduct(models.Product{
		ID:        1,
		ProductID: "X-4",
		Brand:     "Restek",
		Name:      "Raptor Biphenyl 2.7um",
		Status:    models.ProductStatusActive,
	})
	store.conflictsOn = 1

	engine := newTestEngine(store)
	res, err := engine.Classify(context.Background(), "X-4")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, 2, store.applyCalls)
}

func TestClassifyEmptyName(t *testing.T) {
	store := newFakeStore()
	store.addProduct(models.Product{
		ID:        1,
		ProductID: "X-5",
		Brand:     "Restek",
		Status:    models.ProductStatusActive,
	})

	engine := newTestEngine(store)
	_, err := engine.Classify(context.Background(), "X-5")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestClassifyOrphansPaged(t *testing.T) {
	store := newFakeStore()
	for i := 1; i <= 3; i++ {
		store.addProduct(models.Product{
			ID:        uint(i),
			ProductID: fmt.Sprintf("ORP-%d", i),
			Brand:     "Generic",
			Name:      fmt.Sprintf("Test C18 Column %d", i),
			Status:    models.ProductStatusActive,
		})
	}

	engine := newTestEngine(store)

	page1, err := engine.ClassifyOrphans(context.Background(), 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page1.TotalOrphans)
	assert.Equal(t, 2, page1.Processed)
	assert.Equal(t, 2, page1.SuccessCount)
	assert.True(t, page1.HasMore)
	assert.Equal(t, 2, page1.NextOffset)

	page2, err := engine.ClassifyOrphans(context.Background(), page1.NextOffset, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, page2.Processed)
	assert.False(t, page2.HasMore)

	// Everything classified now.
	final, err := engine.ClassifyOrphans(context.Background(), 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), final.TotalOrphans)
	assert.Equal(t, 0, final.Processed)
}

func TestClassifyOrphansInvalidPage(t *testing.T) {
	engine := newTestEngine(newFakeStore())

	_, err := engine.ClassifyOrphans(context.Background(), -1, 10)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = engine.ClassifyOrphans(context.Background(), 0, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
