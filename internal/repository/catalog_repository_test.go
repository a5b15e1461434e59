package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"catalog-service/internal/models"
)

func strPtr(s string) *string   { return &s }
func f64Ptr(v float64) *float64 { return &v }

func TestUSPTokenPatterns(t *testing.T) {
	prefix, suffix, interior := uspTokenPatterns("l1")
	assert.Equal(t, "l1,%", prefix)
	assert.Equal(t, "%,l1", suffix)
	assert.Equal(t, "%,l1,%", interior)
}

func TestPrefixFromProductID(t *testing.T) {
	assert.Equal(t, "REST", prefixFromProductID("REST-9314A12"))
	assert.Equal(t, "WAT", prefixFromProductID("WAT-186002350-2"))
	assert.Equal(t, "", prefixFromProductID("NODASH"))
	assert.Equal(t, "", prefixFromProductID("-leading"))
}

func TestMergeProductUpdatesFillsGapsOnly(t *testing.T) {
	existing := &models.Product{
		Name:         "Raptor C18",
		Brand:        "Restek",
		ParticleSize: f64Ptr(2.7),
	}
	incoming := &models.Product{
		Name:         "Raptor C18 LC Column",
		Brand:        "Restek",
		PartNumber:   "9314A12",
		Description:  strPtr("Superficially porous C18"),
		ParticleSize: f64Ptr(5.0),
		PoreSize:     f64Ptr(90),
	}

	updates := mergeProductUpdates(existing, incoming, false)

	assert.NotContains(t, updates, "name")
	assert.NotContains(t, updates, "brand")
	assert.NotContains(t, updates, "particle_size")
	assert.Equal(t, "9314A12", updates["part_number"])
	assert.Equal(t, "Superficially porous C18", updates["description"])
	assert.Equal(t, 90.0, updates["pore_size"])
}

func TestMergeProductUpdatesAuthoritativeOverwrites(t *testing.T) {
	existing := &models.Product{
		Name:         "Raptor C18",
		Status:       models.ProductStatusActive,
		ParticleSize: f64Ptr(2.7),
	}
	incoming := &models.Product{
		Name:         "Raptor C18 LC Column",
		Status:       models.ProductStatusInactive,
		ParticleSize: f64Ptr(5.0),
	}

	updates := mergeProductUpdates(existing, incoming, true)

	assert.Equal(t, "Raptor C18 LC Column", updates["name"])
	assert.Equal(t, 5.0, updates["particle_size"])
	assert.Equal(t, models.ProductStatusInactive, updates["status"])
}

func TestMergeProductUpdatesStatusNeedsAuthoritative(t *testing.T) {
	existing := &models.Product{Name: "Raptor C18", Status: models.ProductStatusActive}
	incoming := &models.Product{Name: "Raptor C18", Status: models.ProductStatusInactive}

	updates := mergeProductUpdates(existing, incoming, false)
	assert.NotContains(t, updates, "status")
}

func TestMergeProductUpdatesNoChanges(t *testing.T) {
	existing := &models.Product{Name: "Raptor C18", Brand: "Restek"}
	incoming := &models.Product{Name: "Raptor C18", Brand: "Restek"}

	assert.Empty(t, mergeProductUpdates(existing, incoming, false))
	assert.Empty(t, mergeProductUpdates(existing, incoming, true))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(errDuplicateKey{}))
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(assert.AnError))
}

func TestIsPrimaryIndexViolation(t *testing.T) {
	assert.True(t, isPrimaryIndexViolation(errSecondPrimary{}))
	assert.False(t, isPrimaryIndexViolation(errDuplicateKey{}))
	assert.False(t, isPrimaryIndexViolation(nil))
	assert.False(t, isPrimaryIndexViolation(assert.AnError))
}

type errDuplicateKey struct{}

func (errDuplicateKey) Error() string {
	return `ERROR: duplicate key value violates unique constraint "idx_product_category" (SQLSTATE 23505)`
}

type errSecondPrimary struct{}

func (errSecondPrimary) Error() string {
	return `ERROR: duplicate key value violates unique constraint "idx_product_one_primary" (SQLSTATE 23505)`
}
