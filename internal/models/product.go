package models

import (
	"database/sql/driver"
	"encoding/json"
	"strings"
	"time"
)

// ProductStatus represents the lifecycle status of a product
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

// JSON type for PostgreSQL JSONB (object/map)
type JSON map[string]interface{}

func (j JSON) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSON)
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Product represents a catalog product (chromatography column or accessory).
// Free-text identity fields are paired with structured numeric facets used
// by the facet query engine; numeric facets are nullable because not every
// accessory carries them.
type Product struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`
	// ProductID is the stable human-meaningful identifier composed of the
	// brand prefix and part number (e.g. "REST-9314A12").
	ProductID  string `json:"productId" gorm:"size:128;not null;uniqueIndex"`
	PartNumber string `json:"partNumber" gorm:"size:128;not null;index"`
	Brand      string `json:"brand" gorm:"size:64;not null;index"`
	// Prefix is the brand prefix portion of ProductID (e.g. "REST", "WATS").
	Prefix      string  `json:"prefix" gorm:"size:16;not null"`
	Name        string  `json:"name" gorm:"not null"`
	Description *string `json:"description,omitempty"`
	// Specifications holds free-form key/value technical specs.
	Specifications *JSON `json:"specifications,omitempty" gorm:"type:jsonb"`

	// Structured numeric facets. Units: particle size in um, pore size in
	// angstrom, column length and inner diameter in mm.
	ParticleSize  *float64 `json:"particleSize,omitempty" gorm:"index"`
	PoreSize      *float64 `json:"poreSize,omitempty" gorm:"index"`
	ColumnLength  *float64 `json:"columnLength,omitempty" gorm:"index"`
	InnerDiameter *float64 `json:"innerDiameter,omitempty" gorm:"index"`
	PHMin         *float64 `json:"phMin,omitempty" gorm:"column:ph_min"`
	PHMax         *float64 `json:"phMax,omitempty" gorm:"column:ph_max"`

	// PhaseType is the stationary-phase chemistry code (e.g. "C18", "HILIC").
	PhaseType *string `json:"phaseType,omitempty" gorm:"size:32;index"`
	// USP holds comma-joined USP classification codes (e.g. "L1,L3").
	USP *string `json:"usp,omitempty" gorm:"column:usp;size:50"`

	MaxPressure    *string `json:"maxPressure,omitempty" gorm:"size:50"`
	MaxTemperature *string `json:"maxTemperature,omitempty" gorm:"size:50"`
	Applications   *string `json:"applications,omitempty"`
	ImageURL       *string `json:"imageUrl,omitempty" gorm:"column:image_url;size:500"`
	CatalogURL     *string `json:"catalogUrl,omitempty" gorm:"column:catalog_url;size:500"`

	// CategoryID mirrors the primary category association. The association
	// table is the source of truth; this field exists for cheap reads and is
	// kept consistent by the classification engine and the repairer.
	CategoryID *uint `json:"categoryId,omitempty" gorm:"index"`

	Status    ProductStatus `json:"status" gorm:"size:32;not null;default:'active';index"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// TableName returns the table name for the Product model
func (Product) TableName() string {
	return "products"
}

// USPTokens splits the comma-joined USP field into its individual codes.
func (p *Product) USPTokens() []string {
	if p.USP == nil || *p.USP == "" {
		return nil
	}
	parts := strings.Split(*p.USP, ",")
	tokens := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// USPBackfillResult reports how many products received a USP code during a
// keyword backfill run.
type USPBackfillResult struct {
	TotalUpdated int64            `json:"totalUpdated"`
	ByCode       map[string]int64 `json:"byCode"`
}

// ProductCategory is the many-to-many association between products and
// categories. The (product_id, category_id) pair is unique, and a partial
// unique index on product_id WHERE is_primary lets the database reject a
// second primary row for the same product.
type ProductCategory struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ProductID  uint      `json:"productId" gorm:"not null;uniqueIndex:idx_product_category,priority:1;index;index:idx_product_one_primary,unique,where:is_primary"`
	CategoryID uint      `json:"categoryId" gorm:"not null;uniqueIndex:idx_product_category,priority:2;index"`
	IsPrimary  bool      `json:"isPrimary" gorm:"not null;default:false"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName returns the table name for the ProductCategory model
func (ProductCategory) TableName() string {
	return "product_categories"
}

// RangeFilter is a [Min, Max] bound on a numeric facet; either side may be
// omitted. A product with a null value for the facet fails the filter.
type RangeFilter struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// IsZero reports whether the filter constrains anything.
func (r *RangeFilter) IsZero() bool {
	return r == nil || (r.Min == nil && r.Max == nil)
}

// Pagination bounds for facet queries.
const (
	DefaultPageSize = 24
	MaxPageSize     = 100
)

// SearchProductsRequest is the facet filter accepted by the query engine.
// All fields are optional and combined with AND.
type SearchProductsRequest struct {
	// CategoryID scopes results to products associated with the category,
	// including secondary associations.
	CategoryID *uint `json:"categoryId,omitempty"`
	// Brand is an exact match.
	Brand *string `json:"brand,omitempty"`
	// Search is a case-insensitive substring matched against productId,
	// name, partNumber and brand; any field containing the term matches.
	Search *string `json:"search,omitempty"`

	ParticleSize  *RangeFilter `json:"particleSize,omitempty"`
	PoreSize      *RangeFilter `json:"poreSize,omitempty"`
	ColumnLength  *RangeFilter `json:"columnLength,omitempty"`
	InnerDiameter *RangeFilter `json:"innerDiameter,omitempty"`

	// PhaseTypes is a set-membership test on the phase type code.
	PhaseTypes []string `json:"phaseTypes,omitempty"`

	// PHMin/PHMax select products whose own [phMin, phMax] interval
	// intersects the requested interval (overlap, not containment).
	PHMin *float64 `json:"phMin,omitempty"`
	PHMax *float64 `json:"phMax,omitempty"`

	// USP matches a single classification code against the comma-joined
	// usp column (exact, prefix, suffix or interior token).
	USP *string `json:"usp,omitempty"`

	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
}

// Normalize applies pagination defaults and validates bounds.
func (r *SearchProductsRequest) Normalize() error {
	if r.Page < 0 || r.PageSize < 0 {
		return ErrInvalidInput
	}
	if r.Page == 0 {
		r.Page = 1
	}
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize > MaxPageSize {
		return ErrInvalidInput
	}
	return nil
}

// Offset returns the row offset for the normalized page.
func (r *SearchProductsRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// PaginationInfo describes a result page.
type PaginationInfo struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"pageSize"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"totalPages"`
	HasNext     bool  `json:"hasNext"`
	HasPrevious bool  `json:"hasPrevious"`
}

// NewPaginationInfo computes page metadata from an exact total row count.
func NewPaginationInfo(page, pageSize int, total int64) *PaginationInfo {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &PaginationInfo{
		Page:        page,
		PageSize:    pageSize,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type ProductResponse struct {
	Success bool     `json:"success"`
	Data    *Product `json:"data"`
	Message *string  `json:"message,omitempty"`
}

type ProductListResponse struct {
	Success    bool            `json:"success"`
	Data       []Product       `json:"data"`
	Pagination *PaginationInfo `json:"pagination"`
}

type BrandListResponse struct {
	Success bool     `json:"success"`
	Data    []string `json:"data"`
}
