package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

// Store is the persistence surface the engine needs. Implemented by
// repository.CatalogRepository.
type Store interface {
	GetProductByProductID(ctx context.Context, productID string) (*models.Product, error)
	CategoryIDBySlug(ctx context.Context, slug string) (uint, error)
	Associations(ctx context.Context, productID uint) ([]models.ProductCategory, error)
	ApplyClassification(ctx context.Context, productID, primaryCategoryID uint, demoteIDs, removeIDs []uint) error
	OrphanProductIDs(ctx context.Context, offset, limit int) ([]string, int64, error)
}

// EventSink receives classification audit events. Implementations must not
// block; a nil sink disables events.
type EventSink interface {
	ProductClassified(ctx context.Context, product *models.Product, categoryID uint, previousCategoryID *uint)
}

// Result describes the outcome of classifying one product.
type Result struct {
	ProductID    string `json:"productId"`
	CategoryID   uint   `json:"categoryId"`
	CategorySlug string `json:"categorySlug"`
	Changed      bool   `json:"changed"`
}

// BatchItemResult is the per-product outcome of a batch run.
type BatchItemResult struct {
	ProductID    string `json:"productId"`
	CategoryID   uint   `json:"categoryId,omitempty"`
	CategorySlug string `json:"categorySlug,omitempty"`
	Changed      bool   `json:"changed"`
	Error        string `json:"error,omitempty"`
}

// BatchResult aggregates a best-effort batch classification.
type BatchResult struct {
	Total        int               `json:"total"`
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	Items        []BatchItemResult `json:"items"`
}

// OrphanPageResult is one resumable page of orphan classification.
type OrphanPageResult struct {
	TotalOrphans int64             `json:"totalOrphans"`
	Offset       int               `json:"offset"`
	Limit        int               `json:"limit"`
	Processed    int               `json:"processed"`
	SuccessCount int               `json:"successCount"`
	ErrorCount   int               `json:"errorCount"`
	HasMore      bool              `json:"hasMore"`
	NextOffset   int               `json:"nextOffset"`
	Items        []BatchItemResult `json:"items"`
}

// Engine applies the ruleset to products and installs the winning category
// as the primary association, keeping the denormalized category id on the
// product row in step.
type Engine struct {
	store  Store
	rules  *Ruleset
	locks  *keyLock
	logger *logrus.Entry
	events EventSink

	mu      sync.RWMutex
	slugIDs map[string]uint
}

func NewEngine(store Store, rules *Ruleset, logger *logrus.Logger, events EventSink) *Engine {
	if rules == nil {
		rules = DefaultRuleset()
	}
	return &Engine{
		store:   store,
		rules:   rules,
		locks:   newKeyLock(),
		logger:  logger.WithField("component", "classifier"),
		events:  events,
		slugIDs: make(map[string]uint),
	}
}

// LockProduct takes the per-product lock used to serialize all
// category-mutating work for one product. The returned func releases it.
func (e *Engine) LockProduct(id uint) func() {
	e.locks.Lock(id)
	return func() { e.locks.Unlock(id) }
}

// resolveSlug maps a category slug to its row id, memoizing hits. Slugs
// are stable, so entries never need invalidation.
func (e *Engine) resolveSlug(ctx context.Context, slug string) (uint, error) {
	e.mu.RLock()
	id, ok := e.slugIDs[slug]
	e.mu.RUnlock()
	if ok {
		return id, nil
	}

	id, err := e.store.CategoryIDBySlug(ctx, slug)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	e.slugIDs[slug] = id
	e.mu.Unlock()
	return id, nil
}

// Classify evaluates the ruleset for one product and installs the result.
// Already-consistent products produce no write. A unique-index race on the
// association insert is retried once before surfacing ErrConflict.
func (e *Engine) Classify(ctx context.Context, productID string) (*Result, error) {
	product, err := e.store.GetProductByProductID(ctx, productID)
	if err != nil {
		return nil, err
	}

	slugs, err := e.rules.Evaluate(product.Name, product.Brand)
	if err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}

	matchIDs := make([]uint, 0, len(slugs))
	for _, slug := range slugs {
		id, rerr := e.resolveSlug(ctx, slug)
		if rerr != nil {
			return nil, fmt.Errorf("resolving category %s: %w", slug, rerr)
		}
		matchIDs = append(matchIDs, id)
	}
	primaryID := matchIDs[0]

	e.locks.Lock(product.ID)
	defer e.locks.Unlock(product.ID)

	changed, err := e.install(ctx, product, primaryID, matchIDs)
	if err != nil && errors.Is(err, models.ErrConflict) {
		// Lost a unique-index race against a concurrent writer; the state
		// it left behind is re-read and reconciled once.
		changed, err = e.install(ctx, product, primaryID, matchIDs)
	}
	if err != nil {
		return nil, err
	}

	if changed {
		e.logger.WithFields(logrus.Fields{
			"product_id": product.ProductID,
			"category":   slugs[0],
		}).Info("Product classified")
		if e.events != nil {
			e.events.ProductClassified(ctx, product, primaryID, product.CategoryID)
		}
	}

	return &Result{
		ProductID:    product.ProductID,
		CategoryID:   primaryID,
		CategorySlug: slugs[0],
		Changed:      changed,
	}, nil
}

// install reconciles the association rows with the computed match set.
// The old primary is demoted when its category is still a valid secondary
// match and removed otherwise.
func (e *Engine) install(ctx context.Context, product *models.Product, primaryID uint, matchIDs []uint) (bool, error) {
	assocs, err := e.store.Associations(ctx, product.ID)
	if err != nil {
		return false, err
	}

	matchSet := make(map[uint]bool, len(matchIDs))
	for _, id := range matchIDs {
		matchSet[id] = true
	}

	var primaries []models.ProductCategory
	hasPrimaryRow := false
	for _, a := range assocs {
		if a.IsPrimary {
			primaries = append(primaries, a)
			if a.CategoryID == primaryID {
				hasPrimaryRow = true
			}
		}
	}

	consistent := len(primaries) == 1 && hasPrimaryRow &&
		product.CategoryID != nil && *product.CategoryID == primaryID
	if consistent {
		return false, nil
	}

	var demoteIDs, removeIDs []uint
	for _, a := range primaries {
		if a.CategoryID == primaryID {
			continue
		}
		if matchSet[a.CategoryID] {
			demoteIDs = append(demoteIDs, a.ID)
		} else {
			removeIDs = append(removeIDs, a.ID)
		}
	}

	if err := e.store.ApplyClassification(ctx, product.ID, primaryID, demoteIDs, removeIDs); err != nil {
		return false, err
	}
	return true, nil
}

// ClassifyBatch classifies each product best-effort; one failure does not
// stop the batch.
func (e *Engine) ClassifyBatch(ctx context.Context, productIDs []string) *BatchResult {
	result := &BatchResult{
		Total: len(productIDs),
		Items: make([]BatchItemResult, 0, len(productIDs)),
	}
	for _, pid := range productIDs {
		item := BatchItemResult{ProductID: pid}
		res, err := e.Classify(ctx, pid)
		if err != nil {
			item.Error = err.Error()
			result.ErrorCount++
		} else {
			item.CategoryID = res.CategoryID
			item.CategorySlug = res.CategorySlug
			item.Changed = res.Changed
			result.SuccessCount++
		}
		result.Items = append(result.Items, item)
	}
	return result
}

// ClassifyOrphans classifies one page of active products that have no
// category association. Pages are resumable via the returned NextOffset;
// repairs are idempotent so re-running a page is safe.
func (e *Engine) ClassifyOrphans(ctx context.Context, offset, limit int) (*OrphanPageResult, error) {
	if offset < 0 || limit <= 0 {
		return nil, models.ErrInvalidInput
	}

	ids, total, err := e.store.OrphanProductIDs(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	batch := e.ClassifyBatch(ctx, ids)
	return &OrphanPageResult{
		TotalOrphans: total,
		Offset:       offset,
		Limit:        limit,
		Processed:    len(ids),
		SuccessCount: batch.SuccessCount,
		ErrorCount:   batch.ErrorCount,
		HasMore:      int64(offset+limit) < total,
		NextOffset:   offset + limit,
		Items:        batch.Items,
	}, nil
}
