package repository

import (
	"context"
	"time"

	"catalog-service/internal/models"
)

// Consistency queries backing the auditor and repairer. All read queries
// aggregate in SQL so an audit over a large catalog stays a handful of
// statements.

// ProductCounts returns the total and active product counts.
func (r *CatalogRepository) ProductCounts(ctx context.Context) (total, active int64, err error) {
	if err = r.db.WithContext(ctx).Model(&models.Product{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if err = r.db.WithContext(ctx).Model(&models.Product{}).
		Where("status = ?", models.ProductStatusActive).
		Count(&active).Error; err != nil {
		return 0, 0, err
	}
	return total, active, nil
}

// OrphanSamples counts active products without associations and returns a
// bounded sample of their external ids.
func (r *CatalogRepository) OrphanSamples(ctx context.Context, limit int) (int64, []string, error) {
	ids, total, err := r.OrphanProductIDs(ctx, 0, limit)
	return total, ids, err
}

// DuplicateSamples counts (product, category) pairs with more than one
// association row.
func (r *CatalogRepository) DuplicateSamples(ctx context.Context, limit int) (int64, []string, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM (
			SELECT product_id FROM product_categories
			GROUP BY product_id, category_id
			HAVING COUNT(*) > 1
		) dup`).Scan(&total).Error
	if err != nil {
		return 0, nil, err
	}

	var samples []string
	err = r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT p.product_id FROM products p
		JOIN (
			SELECT product_id FROM product_categories
			GROUP BY product_id, category_id
			HAVING COUNT(*) > 1
		) dup ON dup.product_id = p.id
		ORDER BY p.product_id ASC
		LIMIT ?`, limit).Scan(&samples).Error
	return total, samples, err
}

// MultiPrimarySamples counts products carrying more than one primary
// association.
func (r *CatalogRepository) MultiPrimarySamples(ctx context.Context, limit int) (int64, []string, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM (
			SELECT product_id FROM product_categories
			WHERE is_primary
			GROUP BY product_id
			HAVING COUNT(*) > 1
		) mp`).Scan(&total).Error
	if err != nil {
		return 0, nil, err
	}

	var samples []string
	err = r.db.WithContext(ctx).Raw(`
		SELECT p.product_id FROM products p
		JOIN (
			SELECT product_id FROM product_categories
			WHERE is_primary
			GROUP BY product_id
			HAVING COUNT(*) > 1
		) mp ON mp.product_id = p.id
		ORDER BY p.product_id ASC
		LIMIT ?`, limit).Scan(&samples).Error
	return total, samples, err
}

// MismatchSamples counts products whose denormalized category id disagrees
// with their primary association.
func (r *CatalogRepository) MismatchSamples(ctx context.Context, limit int) (int64, []string, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM products p
		JOIN product_categories pc ON pc.product_id = p.id AND pc.is_primary
		WHERE p.category_id IS DISTINCT FROM pc.category_id`).Scan(&total).Error
	if err != nil {
		return 0, nil, err
	}

	var samples []string
	err = r.db.WithContext(ctx).Raw(`
		SELECT p.product_id FROM products p
		JOIN product_categories pc ON pc.product_id = p.id AND pc.is_primary
		WHERE p.category_id IS DISTINCT FROM pc.category_id
		ORDER BY p.product_id ASC
		LIMIT ?`, limit).Scan(&samples).Error
	return total, samples, err
}

// DuplicateProductIDs pages over internal ids of products with duplicate
// association rows, ordered by id for stable resumption.
func (r *CatalogRepository) DuplicateProductIDs(ctx context.Context, offset, limit int) ([]uint, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM (
			SELECT DISTINCT product_id FROM (
				SELECT product_id FROM product_categories
				GROUP BY product_id, category_id
				HAVING COUNT(*) > 1
			) g
		) dup`).Scan(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var ids []uint
	err = r.db.WithContext(ctx).Raw(`
		SELECT DISTINCT product_id FROM (
			SELECT product_id FROM product_categories
			GROUP BY product_id, category_id
			HAVING COUNT(*) > 1
		) g
		ORDER BY product_id ASC
		LIMIT ? OFFSET ?`, limit, offset).Scan(&ids).Error
	return ids, total, err
}

// MultiPrimaryProductIDs pages over internal ids of products with more
// than one primary association.
func (r *CatalogRepository) MultiPrimaryProductIDs(ctx context.Context, offset, limit int) ([]uint, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM (
			SELECT product_id FROM product_categories
			WHERE is_primary
			GROUP BY product_id
			HAVING COUNT(*) > 1
		) mp`).Scan(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var ids []uint
	err = r.db.WithContext(ctx).Raw(`
		SELECT product_id FROM product_categories
		WHERE is_primary
		GROUP BY product_id
		HAVING COUNT(*) > 1
		ORDER BY product_id ASC
		LIMIT ? OFFSET ?`, limit, offset).Scan(&ids).Error
	return ids, total, err
}

// MismatchProductIDs pages over internal ids of products whose category id
// mirror is stale.
func (r *CatalogRepository) MismatchProductIDs(ctx context.Context, offset, limit int) ([]uint, int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT COUNT(*) FROM products p
		JOIN product_categories pc ON pc.product_id = p.id AND pc.is_primary
		WHERE p.category_id IS DISTINCT FROM pc.category_id`).Scan(&total).Error
	if err != nil {
		return nil, 0, err
	}

	var ids []uint
	err = r.db.WithContext(ctx).Raw(`
		SELECT p.id FROM products p
		JOIN product_categories pc ON pc.product_id = p.id AND pc.is_primary
		WHERE p.category_id IS DISTINCT FROM pc.category_id
		ORDER BY p.id ASC
		LIMIT ? OFFSET ?`, limit, offset).Scan(&ids).Error
	return ids, total, err
}

// DeleteAssociations removes association rows by id.
func (r *CatalogRepository) DeleteAssociations(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).
		Delete(&models.ProductCategory{}).Error
}

// DemoteAssociations clears the primary flag on association rows by id.
func (r *CatalogRepository) DemoteAssociations(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.ProductCategory{}).
		Where("id IN ?", ids).
		Update("is_primary", false).Error
}

// SetProductCategoryID updates the denormalized category id on a product.
func (r *CatalogRepository) SetProductCategoryID(ctx context.Context, productID uint, categoryID *uint) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"category_id": categoryID,
			"updated_at":  time.Now(),
		}).Error
}
