package repository

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tesseract-Nexus/go-shared/cache"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"catalog-service/internal/models"
)

// Cache TTL constants
const (
	ProductCacheTTL     = 5 * time.Minute  // Single product cache
	ProductListCacheTTL = 2 * time.Minute  // Search result cache (shorter due to frequent imports)
	BrandListCacheTTL   = 10 * time.Minute // Brand list changes only on import
	CategoryCacheTTL    = 30 * time.Minute // Categories rarely change
)

type CatalogRepository struct {
	db    *gorm.DB
	redis *redis.Client
	cache *cache.CacheLayer
}

func NewCatalogRepository(db *gorm.DB, redis *redis.Client) *CatalogRepository {
	repo := &CatalogRepository{
		db:    db,
		redis: redis,
	}

	// Initialize CacheLayer with the existing Redis client
	if redis != nil {
		cacheConfig := cache.CacheConfig{
			L1Enabled:  true,
			L1MaxItems: 5000,
			L1TTL:      30 * time.Second,
			DefaultTTL: ProductCacheTTL,
			KeyPrefix:  "catalog:products:",
		}
		repo.cache = cache.NewCacheLayerFromClient(redis, cacheConfig)
	}

	return repo
}

// generateListCacheKey creates a deterministic cache key for list queries
func generateListCacheKey(prefix string, params interface{}) string {
	data, _ := json.Marshal(params)
	hash := md5.Sum(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// invalidateProductCaches invalidates caches related to a single product
// plus all search result pages that may contain it.
func (r *CatalogRepository) invalidateProductCaches(ctx context.Context, productID string) {
	if r.cache == nil {
		return
	}
	_ = r.cache.Delete(ctx, fmt.Sprintf("product:%s", productID))
	_ = r.cache.DeletePattern(ctx, "search:*")
	_ = r.cache.Delete(ctx, "brands")
}

// invalidateSearchCaches drops all cached search pages and the brand list.
func (r *CatalogRepository) invalidateSearchCaches(ctx context.Context) {
	if r.cache == nil {
		return
	}
	_ = r.cache.DeletePattern(ctx, "search:*")
	_ = r.cache.Delete(ctx, "brands")
}

// GetProductByProductID retrieves a product by its external catalog id
// (e.g. "REST-9314A12") with caching.
func (r *CatalogRepository) GetProductByProductID(ctx context.Context, productID string) (*models.Product, error) {
	fetch := func() (*models.Product, error) {
		var product models.Product
		if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&product).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
			}
			return nil, err
		}
		return &product, nil
	}

	if r.cache == nil {
		return fetch()
	}

	var product models.Product
	err := r.cache.GetOrSetJSON(ctx, fmt.Sprintf("product:%s", productID), &product, ProductCacheTTL, func() (any, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductByInternalID retrieves a product by its surrogate key. Used by
// the classification and repair paths, which must never read stale data.
func (r *CatalogRepository) GetProductByInternalID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product id %d: %w", id, models.ErrNotFound)
		}
		return nil, err
	}
	return &product, nil
}

// SearchProducts executes a facet query: one bounded page query plus an
// exact count, both over the same filter set. Results are cached per
// filter combination.
func (r *CatalogRepository) SearchProducts(ctx context.Context, req *models.SearchProductsRequest) ([]models.Product, int64, error) {
	if err := req.Normalize(); err != nil {
		return nil, 0, err
	}

	type searchResult struct {
		Products []models.Product `json:"products"`
		Total    int64            `json:"total"`
	}

	run := func() (*searchResult, error) {
		var products []models.Product
		var total int64

		query := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("status = ?", models.ProductStatusActive)
		query = r.applySearchFilters(query, req)

		if err := query.Count(&total).Error; err != nil {
			return nil, err
		}
		if err := query.Order("id ASC").
			Offset(req.Offset()).Limit(req.PageSize).
			Find(&products).Error; err != nil {
			return nil, err
		}
		return &searchResult{Products: products, Total: total}, nil
	}

	if r.cache == nil {
		result, err := run()
		if err != nil {
			return nil, 0, err
		}
		return result.Products, result.Total, nil
	}

	cacheKey := generateListCacheKey("search", req)
	var result searchResult
	err := r.cache.GetOrSetJSON(ctx, cacheKey, &result, ProductListCacheTTL, func() (any, error) {
		return run()
	})
	if err != nil {
		return nil, 0, err
	}
	return result.Products, result.Total, nil
}

// ListBrands returns the distinct brands of active products, cached.
func (r *CatalogRepository) ListBrands(ctx context.Context) ([]string, error) {
	fetch := func() ([]string, error) {
		var brands []string
		err := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("status = ? AND brand <> ''", models.ProductStatusActive).
			Distinct("brand").
			Order("brand ASC").
			Pluck("brand", &brands).Error
		return brands, err
	}

	if r.cache == nil {
		return fetch()
	}

	var brands []string
	err := r.cache.GetOrSetJSON(ctx, "brands", &brands, BrandListCacheTTL, func() (any, error) {
		return fetch()
	})
	if err != nil {
		return nil, err
	}
	return brands, nil
}

// applySearchFilters translates a facet filter into WHERE clauses. Numeric
// range comparisons against NULL columns are false in SQL, which gives the
// required null-fails-the-filter behavior for free.
func (r *CatalogRepository) applySearchFilters(query *gorm.DB, req *models.SearchProductsRequest) *gorm.DB {
	if req.CategoryID != nil {
		query = query.Where("products.id IN (?)",
			r.db.Table("product_categories").
				Select("product_id").
				Where("category_id = ?", *req.CategoryID))
	}

	if req.Brand != nil && *req.Brand != "" {
		query = query.Where("brand = ?", *req.Brand)
	}

	if req.Search != nil && strings.TrimSpace(*req.Search) != "" {
		term := "%" + strings.TrimSpace(*req.Search) + "%"
		query = query.Where(
			"product_id ILIKE ? OR name ILIKE ? OR part_number ILIKE ? OR brand ILIKE ?",
			term, term, term, term)
	}

	query = applyRangeFilter(query, "particle_size", req.ParticleSize)
	query = applyRangeFilter(query, "pore_size", req.PoreSize)
	query = applyRangeFilter(query, "column_length", req.ColumnLength)
	query = applyRangeFilter(query, "inner_diameter", req.InnerDiameter)

	if len(req.PhaseTypes) > 0 {
		query = query.Where("phase_type IN ?", req.PhaseTypes)
	}

	// pH is an interval-overlap test: the product's usable range must
	// intersect the requested range.
	if req.PHMin != nil {
		query = query.Where("ph_max >= ?", *req.PHMin)
	}
	if req.PHMax != nil {
		query = query.Where("ph_min <= ?", *req.PHMax)
	}

	if req.USP != nil && strings.TrimSpace(*req.USP) != "" {
		token := strings.TrimSpace(*req.USP)
		prefix, suffix, interior := uspTokenPatterns(token)
		query = query.Where(
			"usp = ? OR usp LIKE ? OR usp LIKE ? OR usp LIKE ?",
			token, prefix, suffix, interior)
	}

	return query
}

func applyRangeFilter(query *gorm.DB, column string, filter *models.RangeFilter) *gorm.DB {
	if filter.IsZero() {
		return query
	}
	if filter.Min != nil {
		query = query.Where(column+" >= ?", *filter.Min)
	}
	if filter.Max != nil {
		query = query.Where(column+" <= ?", *filter.Max)
	}
	return query
}

// uspTokenPatterns builds the three LIKE patterns that, together with an
// exact match, cover every position of a token inside the comma-joined
// usp column: leading, trailing and interior.
func uspTokenPatterns(token string) (prefix, suffix, interior string) {
	return token + ",%", "%," + token, "%," + token + ",%"
}

// ============================================================================
// Merge-upsert write path
// ============================================================================

// UpsertProducts creates or updates products keyed by external product id.
// Existing rows are merged: an incoming value only overwrites a field that
// is currently empty or null, unless authoritative is true, in which case
// all non-empty incoming values win. Per-item failures are collected and
// do not abort the batch.
func (r *CatalogRepository) UpsertProducts(ctx context.Context, products []models.Product, authoritative bool) (*models.BulkUpsertResult, error) {
	result := &models.BulkUpsertResult{
		TotalCount: len(products),
		Items:      make([]models.BulkUpsertItemResult, 0, len(products)),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range products {
			incoming := &products[i]
			item := models.BulkUpsertItemResult{ProductID: incoming.ProductID}

			if strings.TrimSpace(incoming.ProductID) == "" || strings.TrimSpace(incoming.Name) == "" {
				item.Error = "productId and name are required"
				result.FailedCount++
				result.Items = append(result.Items, item)
				continue
			}

			var existing models.Product
			err := tx.Where("product_id = ?", incoming.ProductID).First(&existing).Error

			switch {
			case err == nil:
				updates := mergeProductUpdates(&existing, incoming, authoritative)
				if len(updates) > 0 {
					updates["updated_at"] = time.Now()
					if uerr := tx.Model(&models.Product{}).
						Where("id = ?", existing.ID).
						Updates(updates).Error; uerr != nil {
						item.Error = uerr.Error()
						result.FailedCount++
						result.Items = append(result.Items, item)
						continue
					}
				}
				result.UpdatedCount++
				result.Items = append(result.Items, item)

			case errors.Is(err, gorm.ErrRecordNotFound):
				if incoming.Status == "" {
					incoming.Status = models.ProductStatusActive
				}
				if incoming.Prefix == "" {
					incoming.Prefix = prefixFromProductID(incoming.ProductID)
				}
				incoming.CreatedAt = time.Now()
				incoming.UpdatedAt = time.Now()
				if cerr := tx.Create(incoming).Error; cerr != nil {
					item.Error = cerr.Error()
					result.FailedCount++
					result.Items = append(result.Items, item)
					continue
				}
				item.Created = true
				result.CreatedCount++
				result.Items = append(result.Items, item)

			default:
				item.Error = err.Error()
				result.FailedCount++
				result.Items = append(result.Items, item)
			}
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	result.Success = result.FailedCount == 0
	if result.CreatedCount > 0 || result.UpdatedCount > 0 {
		r.invalidateSearchCaches(ctx)
		for i := range products {
			r.invalidateProductCaches(ctx, products[i].ProductID)
		}
	}
	return result, nil
}

// mergeProductUpdates computes the column updates for an existing row.
// Merge mode fills gaps only; authoritative mode lets every non-empty
// incoming value overwrite.
func mergeProductUpdates(existing, incoming *models.Product, authoritative bool) map[string]interface{} {
	updates := make(map[string]interface{})

	setString := func(column, current, in string) {
		if in == "" {
			return
		}
		if authoritative && in != current {
			updates[column] = in
		} else if current == "" {
			updates[column] = in
		}
	}
	setStringPtr := func(column string, current, in *string) {
		if in == nil || *in == "" {
			return
		}
		if authoritative && (current == nil || *current != *in) {
			updates[column] = *in
		} else if current == nil || *current == "" {
			updates[column] = *in
		}
	}
	setFloatPtr := func(column string, current, in *float64) {
		if in == nil {
			return
		}
		if authoritative && (current == nil || *current != *in) {
			updates[column] = *in
		} else if current == nil {
			updates[column] = *in
		}
	}

	setString("name", existing.Name, incoming.Name)
	setString("part_number", existing.PartNumber, incoming.PartNumber)
	setString("brand", existing.Brand, incoming.Brand)
	setString("prefix", existing.Prefix, incoming.Prefix)
	setStringPtr("description", existing.Description, incoming.Description)
	setStringPtr("phase_type", existing.PhaseType, incoming.PhaseType)
	setStringPtr("usp", existing.USP, incoming.USP)
	setStringPtr("max_pressure", existing.MaxPressure, incoming.MaxPressure)
	setStringPtr("max_temperature", existing.MaxTemperature, incoming.MaxTemperature)
	setStringPtr("applications", existing.Applications, incoming.Applications)
	setStringPtr("image_url", existing.ImageURL, incoming.ImageURL)
	setStringPtr("catalog_url", existing.CatalogURL, incoming.CatalogURL)
	setFloatPtr("particle_size", existing.ParticleSize, incoming.ParticleSize)
	setFloatPtr("pore_size", existing.PoreSize, incoming.PoreSize)
	setFloatPtr("column_length", existing.ColumnLength, incoming.ColumnLength)
	setFloatPtr("inner_diameter", existing.InnerDiameter, incoming.InnerDiameter)
	setFloatPtr("ph_min", existing.PHMin, incoming.PHMin)
	setFloatPtr("ph_max", existing.PHMax, incoming.PHMax)

	if incoming.Specifications != nil && len(*incoming.Specifications) > 0 {
		if authoritative || existing.Specifications == nil || len(*existing.Specifications) == 0 {
			updates["specifications"] = *incoming.Specifications
		}
	}
	if incoming.Status != "" && authoritative && incoming.Status != existing.Status {
		updates["status"] = incoming.Status
	}

	return updates
}

// prefixFromProductID extracts the brand prefix from a "PREFIX-partnumber" id.
func prefixFromProductID(productID string) string {
	if idx := strings.Index(productID, "-"); idx > 0 {
		return productID[:idx]
	}
	return ""
}

// ============================================================================
// Classification support
// ============================================================================

// CategoryIDBySlug resolves a category slug to its row id.
func (r *CatalogRepository) CategoryIDBySlug(ctx context.Context, slug string) (uint, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).Select("id").Where("slug = ?", slug).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("category slug %s: %w", slug, models.ErrNotFound)
		}
		return 0, err
	}
	return category.ID, nil
}

// Associations returns the category association rows for a product,
// ordered by surrogate id so resolution rules are deterministic.
func (r *CatalogRepository) Associations(ctx context.Context, productID uint) ([]models.ProductCategory, error) {
	var assocs []models.ProductCategory
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id ASC").
		Find(&assocs).Error
	return assocs, err
}

// ApplyClassification atomically installs a new primary category for a
// product: losing primaries are demoted or removed first, the winning
// association row is upserted, and the denormalized category id on the
// product row is updated to match. The idx_product_one_primary partial
// index is not deferrable, so demotions must land before the promotion;
// a violation of that index means a concurrent writer installed a
// different primary and surfaces as ErrConstraintViolation, while a
// (product_id, category_id) duplicate race surfaces as ErrConflict.
func (r *CatalogRepository) ApplyClassification(ctx context.Context, productID, primaryCategoryID uint, demoteIDs, removeIDs []uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(demoteIDs) > 0 {
			if uerr := tx.Model(&models.ProductCategory{}).
				Where("id IN ?", demoteIDs).
				Update("is_primary", false).Error; uerr != nil {
				return uerr
			}
		}
		if len(removeIDs) > 0 {
			if derr := tx.Where("id IN ?", removeIDs).
				Delete(&models.ProductCategory{}).Error; derr != nil {
				return derr
			}
		}

		var assoc models.ProductCategory
		err := tx.Where("product_id = ? AND category_id = ?", productID, primaryCategoryID).
			First(&assoc).Error
		switch {
		case err == nil:
			if !assoc.IsPrimary {
				if uerr := tx.Model(&models.ProductCategory{}).
					Where("id = ?", assoc.ID).
					Update("is_primary", true).Error; uerr != nil {
					if isPrimaryIndexViolation(uerr) {
						return fmt.Errorf("second primary for product %d: %w", productID, models.ErrConstraintViolation)
					}
					return uerr
				}
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			assoc = models.ProductCategory{
				ProductID:  productID,
				CategoryID: primaryCategoryID,
				IsPrimary:  true,
				CreatedAt:  time.Now(),
			}
			if cerr := tx.Create(&assoc).Error; cerr != nil {
				switch {
				case isPrimaryIndexViolation(cerr):
					return fmt.Errorf("second primary for product %d: %w", productID, models.ErrConstraintViolation)
				case isUniqueViolation(cerr):
					return fmt.Errorf("association for product %d: %w", productID, models.ErrConflict)
				}
				return cerr
			}
		default:
			return err
		}

		return tx.Model(&models.Product{}).
			Where("id = ?", productID).
			Updates(map[string]interface{}{
				"category_id": primaryCategoryID,
				"updated_at":  time.Now(),
			}).Error
	})
	if err != nil {
		return err
	}

	var externalIDs []string
	if gerr := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Pluck("product_id", &externalIDs).Error; gerr == nil && len(externalIDs) > 0 {
		r.invalidateProductCaches(ctx, externalIDs[0])
	}
	return nil
}

// OrphanProductIDs returns a page of external ids for active products with
// no category associations, plus the total orphan count.
func (r *CatalogRepository) OrphanProductIDs(ctx context.Context, offset, limit int) ([]string, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("status = ?", models.ProductStatusActive).
		Where("NOT EXISTS (SELECT 1 FROM product_categories pc WHERE pc.product_id = products.id)")

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var ids []string
	if err := base.Order("id ASC").Offset(offset).Limit(limit).
		Pluck("product_id", &ids).Error; err != nil {
		return nil, 0, err
	}
	return ids, total, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "23505")
}

// isPrimaryIndexViolation reports whether err comes from the partial unique
// index that allows at most one is_primary row per product.
func isPrimaryIndexViolation(err error) bool {
	return isUniqueViolation(err) && strings.Contains(err.Error(), "idx_product_one_primary")
}

// ============================================================================
// USP backfill
// ============================================================================

// uspBackfillRules map name keywords onto USP phase codes. Matching is
// case-sensitive: the short codes (C8, CN, ODS) appear capitalized in real
// product names and a lowercase match would hit ordinary words.
var uspBackfillRules = []struct {
	Code     string
	Keywords []string
}{
	{"L1", []string{"C18", "Octadecyl", "ODS"}},
	{"L7", []string{"C8", "Octyl"}},
	{"L11", []string{"Phenyl"}},
	{"L60", []string{"HILIC"}},
	{"L10", []string{"Nitrile", "Cyano", "CN"}},
	{"L3", []string{"Silica", "SiO2"}},
}

// BackfillUSP fills the usp column from name keywords for products that do
// not carry a code yet. Rules run in order, so a product whose name matches
// several rules keeps the first assignment.
func (r *CatalogRepository) BackfillUSP(ctx context.Context) (*models.USPBackfillResult, error) {
	result := &models.USPBackfillResult{ByCode: make(map[string]int64, len(uspBackfillRules))}
	for _, rule := range uspBackfillRules {
		clause, args := nameKeywordClause(rule.Keywords)
		res := r.db.WithContext(ctx).Model(&models.Product{}).
			Where("usp IS NULL OR usp = ''").
			Where(clause, args...).
			Updates(map[string]interface{}{
				"usp":        rule.Code,
				"updated_at": time.Now(),
			})
		if res.Error != nil {
			return nil, res.Error
		}
		result.ByCode[rule.Code] = res.RowsAffected
		result.TotalUpdated += res.RowsAffected
	}
	return result, nil
}

func nameKeywordClause(keywords []string) (string, []interface{}) {
	conds := make([]string, len(keywords))
	args := make([]interface{}, len(keywords))
	for i, kw := range keywords {
		conds[i] = "name LIKE ?"
		args[i] = "%" + kw + "%"
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}
