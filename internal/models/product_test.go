package models

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestProductCategorySinglePrimaryIndex(t *testing.T) {
	s, err := schema.Parse(&ProductCategory{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	idx, ok := s.ParseIndexes()["idx_product_one_primary"]
	require.True(t, ok, "partial unique index on primary rows not declared")
	assert.Equal(t, "UNIQUE", idx.Class)
	assert.Equal(t, "is_primary", idx.Where)
	require.Len(t, idx.Fields, 1)
	assert.Equal(t, "product_id", idx.Fields[0].DBName)
}

func TestSearchRequestNormalizeDefaults(t *testing.T) {
	req := &SearchProductsRequest{}
	require.NoError(t, req.Normalize())
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, DefaultPageSize, req.PageSize)
	assert.Equal(t, 0, req.Offset())
}

func TestSearchRequestNormalizeBounds(t *testing.T) {
	assert.ErrorIs(t, (&SearchProductsRequest{Page: -1}).Normalize(), ErrInvalidInput)
	assert.ErrorIs(t, (&SearchProductsRequest{PageSize: -5}).Normalize(), ErrInvalidInput)
	assert.ErrorIs(t, (&SearchProductsRequest{PageSize: MaxPageSize + 1}).Normalize(), ErrInvalidInput)

	req := &SearchProductsRequest{Page: 3, PageSize: MaxPageSize}
	require.NoError(t, req.Normalize())
	assert.Equal(t, 200, req.Offset())
}

func TestNewPaginationInfo(t *testing.T) {
	info := NewPaginationInfo(1, 24, 37)
	assert.Equal(t, 2, info.TotalPages)
	assert.True(t, info.HasNext)
	assert.False(t, info.HasPrevious)

	last := NewPaginationInfo(2, 24, 37)
	assert.False(t, last.HasNext)
	assert.True(t, last.HasPrevious)

	empty := NewPaginationInfo(1, 24, 0)
	assert.Equal(t, 0, empty.TotalPages)
	assert.False(t, empty.HasNext)
}

func TestUSPTokens(t *testing.T) {
	usp := "l1, l7,l11"
	p := &Product{USP: &usp}
	assert.Equal(t, []string{"l1", "l7", "l11"}, p.USPTokens())

	empty := ""
	assert.Nil(t, (&Product{USP: &empty}).USPTokens())
	assert.Nil(t, (&Product{}).USPTokens())
}

func TestRangeFilterIsZero(t *testing.T) {
	min := 2.0
	assert.True(t, (*RangeFilter)(nil).IsZero())
	assert.True(t, (&RangeFilter{}).IsZero())
	assert.False(t, (&RangeFilter{Min: &min}).IsZero())
}

func TestProductImportTemplateColumns(t *testing.T) {
	template := ProductImportTemplate()
	require.NotEmpty(t, template.Columns)

	required := map[string]bool{}
	for _, col := range template.Columns {
		if col.Required {
			required[col.Name] = true
		}
	}
	assert.True(t, required["productId"])
	assert.True(t, required["name"])
	assert.True(t, required["brand"])
	assert.Len(t, required, 3)
}
