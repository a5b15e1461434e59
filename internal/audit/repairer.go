package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"catalog-service/internal/classifier"
	"catalog-service/internal/models"
)

// RepairItem is the per-product outcome of a repair page.
type RepairItem struct {
	ProductID string `json:"productId"`
	Action    string `json:"action"`
	Error     string `json:"error,omitempty"`
}

// RepairResult is one resumable page of repairs for a single violation
// class.
type RepairResult struct {
	Class        Class        `json:"class"`
	Total        int64        `json:"total"`
	Processed    int          `json:"processed"`
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	HasMore      bool         `json:"hasMore"`
	NextOffset   int          `json:"nextOffset"`
	Items        []RepairItem `json:"items"`
}

// Repairer fixes one violation class at a time, in bounded offset/limit
// pages. Violations are data, not errors: per-item failures are collected
// and the page continues. Orphans are repaired by running classification;
// the other classes are resolved directly against the association table.
type Repairer struct {
	store  Store
	engine *classifier.Engine
	logger *logrus.Entry
}

func NewRepairer(store Store, engine *classifier.Engine, logger *logrus.Logger) *Repairer {
	return &Repairer{
		store:  store,
		engine: engine,
		logger: logger.WithField("component", "repair"),
	}
}

// Repair processes one page of one violation class. Pages are individually
// idempotent, so an interrupted run can resume at NextOffset without
// double-processing.
func (r *Repairer) Repair(ctx context.Context, class Class, offset, limit int) (*RepairResult, error) {
	if offset < 0 || limit <= 0 {
		return nil, models.ErrInvalidInput
	}

	switch class {
	case ClassOrphan:
		return r.repairOrphans(ctx, offset, limit)
	case ClassDuplicate:
		return r.repairPage(ctx, ClassDuplicate, offset, limit, r.store.DuplicateProductIDs, r.repairDuplicates)
	case ClassMultiPrimary:
		return r.repairPage(ctx, ClassMultiPrimary, offset, limit, r.store.MultiPrimaryProductIDs, r.repairMultiPrimary)
	case ClassMismatch:
		return r.repairPage(ctx, ClassMismatch, offset, limit, r.store.MismatchProductIDs, r.repairMismatch)
	}
	return nil, fmt.Errorf("violation class %q: %w", class, models.ErrInvalidInput)
}

// repairOrphans delegates to the classification engine, which already
// pages over orphans and guarantees a primary assignment per product.
func (r *Repairer) repairOrphans(ctx context.Context, offset, limit int) (*RepairResult, error) {
	page, err := r.engine.ClassifyOrphans(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	result := &RepairResult{
		Class:        ClassOrphan,
		Total:        page.TotalOrphans,
		Processed:    page.Processed,
		SuccessCount: page.SuccessCount,
		ErrorCount:   page.ErrorCount,
		HasMore:      page.HasMore,
		NextOffset:   page.NextOffset,
		Items:        make([]RepairItem, 0, len(page.Items)),
	}
	for _, item := range page.Items {
		ri := RepairItem{ProductID: item.ProductID, Action: "classified"}
		if item.Error != "" {
			ri.Action = "failed"
			ri.Error = item.Error
		}
		result.Items = append(result.Items, ri)
	}
	r.logPage(result)
	return result, nil
}

type pageFunc func(ctx context.Context, offset, limit int) ([]uint, int64, error)
type fixFunc func(ctx context.Context, productID uint) (string, error)

func (r *Repairer) repairPage(ctx context.Context, class Class, offset, limit int, page pageFunc, fix fixFunc) (*RepairResult, error) {
	ids, total, err := page(ctx, offset, limit)
	if err != nil {
		return nil, err
	}

	result := &RepairResult{
		Class:      class,
		Total:      total,
		Processed:  len(ids),
		HasMore:    int64(offset+limit) < total,
		NextOffset: offset + limit,
		Items:      make([]RepairItem, 0, len(ids)),
	}

	for _, id := range ids {
		externalID := fmt.Sprintf("#%d", id)
		if p, perr := r.store.GetProductByInternalID(ctx, id); perr == nil {
			externalID = p.ProductID
		}

		unlock := r.engine.LockProduct(id)
		action, ferr := fix(ctx, id)
		unlock()

		item := RepairItem{ProductID: externalID, Action: action}
		if ferr != nil {
			item.Action = "failed"
			item.Error = ferr.Error()
			result.ErrorCount++
		} else {
			result.SuccessCount++
		}
		result.Items = append(result.Items, item)
	}

	r.logPage(result)
	return result, nil
}

// repairDuplicates keeps one row per (product, category) pair, preferring
// a primary row among the duplicates and falling back to the lowest
// association id, then deletes the rest.
func (r *Repairer) repairDuplicates(ctx context.Context, productID uint) (string, error) {
	assocs, err := r.store.Associations(ctx, productID)
	if err != nil {
		return "", err
	}

	groups := make(map[uint][]models.ProductCategory)
	for _, a := range assocs {
		groups[a.CategoryID] = append(groups[a.CategoryID], a)
	}

	var deleteIDs []uint
	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		survivor := group[0]
		for _, a := range group[1:] {
			if a.IsPrimary && !survivor.IsPrimary {
				survivor = a
			} else if a.IsPrimary == survivor.IsPrimary && a.ID < survivor.ID {
				survivor = a
			}
		}
		for _, a := range group {
			if a.ID != survivor.ID {
				deleteIDs = append(deleteIDs, a.ID)
			}
		}
	}

	if len(deleteIDs) == 0 {
		return "noop", nil
	}
	if err := r.store.DeleteAssociations(ctx, deleteIDs); err != nil {
		return "", err
	}
	return fmt.Sprintf("deleted %d duplicate rows", len(deleteIDs)), nil
}

// repairMultiPrimary keeps exactly one primary row per product, preferring
// the one matching the denormalized category id and falling back to the
// lowest association id, then demotes the others.
func (r *Repairer) repairMultiPrimary(ctx context.Context, productID uint) (string, error) {
	assocs, err := r.store.Associations(ctx, productID)
	if err != nil {
		return "", err
	}
	product, err := r.store.GetProductByInternalID(ctx, productID)
	if err != nil {
		return "", err
	}

	var primaries []models.ProductCategory
	for _, a := range assocs {
		if a.IsPrimary {
			primaries = append(primaries, a)
		}
	}
	if len(primaries) < 2 {
		return "noop", nil
	}

	survivor := primaries[0]
	if product.CategoryID != nil {
		for _, a := range primaries {
			if a.CategoryID == *product.CategoryID {
				survivor = a
				break
			}
		}
	}

	var demoteIDs []uint
	for _, a := range primaries {
		if a.ID != survivor.ID {
			demoteIDs = append(demoteIDs, a.ID)
		}
	}
	if err := r.store.DemoteAssociations(ctx, demoteIDs); err != nil {
		return "", err
	}

	// Keep the mirror in step with the surviving primary.
	if product.CategoryID == nil || *product.CategoryID != survivor.CategoryID {
		cid := survivor.CategoryID
		if err := r.store.SetProductCategoryID(ctx, productID, &cid); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("demoted %d extra primaries", len(demoteIDs)), nil
}

// repairMismatch sets the denormalized category id from the primary
// association; the association table is the source of truth.
func (r *Repairer) repairMismatch(ctx context.Context, productID uint) (string, error) {
	assocs, err := r.store.Associations(ctx, productID)
	if err != nil {
		return "", err
	}
	product, err := r.store.GetProductByInternalID(ctx, productID)
	if err != nil {
		return "", err
	}

	var primary *models.ProductCategory
	for i := range assocs {
		if assocs[i].IsPrimary {
			primary = &assocs[i]
			break
		}
	}
	if primary == nil {
		// No primary to mirror; this product belongs to another class.
		return "skipped", nil
	}
	if product.CategoryID != nil && *product.CategoryID == primary.CategoryID {
		return "noop", nil
	}

	cid := primary.CategoryID
	if err := r.store.SetProductCategoryID(ctx, productID, &cid); err != nil {
		return "", err
	}
	return "category id updated", nil
}

func (r *Repairer) logPage(result *RepairResult) {
	r.logger.WithFields(logrus.Fields{
		"class":     result.Class,
		"processed": result.Processed,
		"success":   result.SuccessCount,
		"errors":    result.ErrorCount,
		"has_more":  result.HasMore,
	}).Info("Repair page completed")
}
