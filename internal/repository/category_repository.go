package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// CategoryRepository is a read-mostly view over the category forest. The
// whole table is small and changes rarely, so graph operations load the
// full list (cached) and walk it in memory.
type CategoryRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewCategoryRepository(db *gorm.DB, redis *redis.Client) *CategoryRepository {
	repo := &CategoryRepository{
		db:    db,
		redis: redis,
	}

	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 100,
			L1TTL:      60 * time.Second,
			DefaultTTL: CategoryCacheTTL,
			KeyPrefix:  "catalog:categories:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// InvalidateCache drops the cached category list.
func (r *CategoryRepository) InvalidateCache(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, "all")
}

// loadAll returns every category ordered for display.
func (r *CategoryRepository) loadAll(ctx context.Context) ([]models.Category, error) {
	fetch := func() ([]models.Category, error) {
		var categories []models.Category
		err := r.db.WithContext(ctx).
			Order("display_order ASC, name ASC").
			Find(&categories).Error
		return categories, err
	}

	if r.cache == nil {
		return fetch()
	}

	var categories []models.Category
	err := r.cache.GetOrSetJSON(ctx, "all", &categories, CategoryCacheTTL, func() (any, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// GetByID retrieves a category by its row id.
func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	categories, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if categories[i].ID == id {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
}

// GetBySlug retrieves a category by its stable slug.
func (r *CategoryRepository) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	var category models.Category
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&category).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("category slug %s: %w", slug, models.ErrNotFound)
		}
		return nil, err
	}
	return &category, nil
}

// Children returns the direct children of a category in display order.
// The category itself must exist; a leaf yields an empty slice.
func (r *CategoryRepository) Children(ctx context.Context, id uint) ([]models.Category, error) {
	categories, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	if !containsCategory(categories, id) {
		return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	return childrenOf(categories, id), nil
}

// Roots returns the visible top-level categories in display order.
func (r *CategoryRepository) Roots(ctx context.Context) ([]models.Category, error) {
	categories, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	roots := make([]models.Category, 0)
	for _, c := range categories {
		if c.ParentID == nil && c.IsVisible {
			roots = append(roots, c)
		}
	}
	return roots, nil
}

// IsLeaf reports whether a category has no children.
func (r *CategoryRepository) IsLeaf(ctx context.Context, id uint) (bool, error) {
	children, err := r.Children(ctx, id)
	if err != nil {
		return false, err
	}
	return len(children) == 0, nil
}

// Ancestors returns the path from the root down to (and including) the
// given category.
func (r *CategoryRepository) Ancestors(ctx context.Context, id uint) ([]models.Category, error) {
	categories, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	path, ok := ancestorPath(categories, id)
	if !ok {
		return nil, fmt.Errorf("category %d: %w", id, models.ErrNotFound)
	}
	return path, nil
}

// Tree returns the visible category forest as nested nodes.
func (r *CategoryRepository) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	categories, err := r.loadAll(ctx)
	if err != nil {
		return nil, err
	}
	return buildTree(categories), nil
}

// ============================================================================
// Pure graph helpers
// ============================================================================

func containsCategory(categories []models.Category, id uint) bool {
	for _, c := range categories {
		if c.ID == id {
			return true
		}
	}
	return false
}

// childrenOf filters the direct children of parentID, preserving input
// order (the loader orders by display_order, name).
func childrenOf(categories []models.Category, parentID uint) []models.Category {
	children := make([]models.Category, 0)
	for _, c := range categories {
		if c.ParentID != nil && *c.ParentID == parentID {
			children = append(children, c)
		}
	}
	return children
}

// ancestorPath walks parent pointers from the node up to its root and
// returns the reversed path (root first). Returns false when the id is
// unknown or a parent pointer dangles.
func ancestorPath(categories []models.Category, id uint) ([]models.Category, bool) {
	byID := make(map[uint]models.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	var reversed []models.Category
	current, ok := byID[id]
	if !ok {
		return nil, false
	}
	for {
		reversed = append(reversed, current)
		if current.ParentID == nil {
			break
		}
		parent, ok := byID[*current.ParentID]
		if !ok {
			return nil, false
		}
		// A path longer than the table means a parent cycle.
		if len(reversed) > len(categories) {
			return nil, false
		}
		current = parent
	}

	path := make([]models.Category, len(reversed))
	for i, c := range reversed {
		path[len(reversed)-1-i] = c
	}
	return path, true
}

// buildTree assembles nested nodes for the visible forest, children sorted
// by display order then name.
func buildTree(categories []models.Category) []*models.CategoryNode {
	nodes := make(map[uint]*models.CategoryNode, len(categories))
	for _, c := range categories {
		if !c.IsVisible {
			continue
		}
		nodes[c.ID] = &models.CategoryNode{Category: c}
	}

	var roots []*models.CategoryNode
	for _, c := range categories {
		node, ok := nodes[c.ID]
		if !ok {
			continue
		}
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		if parent, ok := nodes[*c.ParentID]; ok {
			parent.Children = append(parent.Children, node)
		}
	}

	sortNodes(roots)
	for _, n := range nodes {
		sortNodes(n.Children)
	}
	return roots
}

func sortNodes(nodes []*models.CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].DisplayOrder != nodes[j].DisplayOrder {
			return nodes[i].DisplayOrder < nodes[j].DisplayOrder
		}
		return nodes[i].Name < nodes[j].Name
	})
}
