package handlers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-service/internal/models"
)

func TestRowToProduct(t *testing.T) {
	row := map[string]string{
		"productid":     "REST-9314A12",
		"name":          "Raptor C18 2.7um 100x2.1mm",
		"brand":         "Restek",
		"partnumber":    "9314A12",
		"particlesize":  "2.7",
		"poresize":      "90",
		"columnlength":  "100",
		"innerdiameter": "2.1",
		"phmin":         "1.0",
		"phmax":         "8.0",
		"phasetype":     "C18",
		"usp":           "L1",
	}

	product, errs := rowToProduct(row, 2)
	require.Empty(t, errs)
	assert.Equal(t, "REST-9314A12", product.ProductID)
	assert.Equal(t, "Restek", product.Brand)
	assert.Equal(t, 2.7, *product.ParticleSize)
	assert.Equal(t, 8.0, *product.PHMax)
	assert.Equal(t, "C18", *product.PhaseType)
	assert.Equal(t, models.ProductStatusActive, product.Status)
}

func TestRowToProductMissingRequired(t *testing.T) {
	_, errs := rowToProduct(map[string]string{"name": "Nameless"}, 3)
	require.Len(t, errs, 2)
	assert.Equal(t, "REQUIRED_FIELD", errs[0].Code)
	assert.Equal(t, 3, errs[0].Row)
}

func TestRowToProductBadNumber(t *testing.T) {
	row := map[string]string{
		"productid":    "REST-1",
		"name":         "Raptor C18",
		"brand":        "Restek",
		"particlesize": "two point seven",
	}

	_, errs := rowToProduct(row, 5)
	require.Len(t, errs, 1)
	assert.Equal(t, "INVALID_NUMBER", errs[0].Code)
	assert.Equal(t, "particleSize", errs[0].Column)
}

func TestRowToProductInvertedPHRange(t *testing.T) {
	row := map[string]string{
		"productid": "REST-1",
		"name":      "Raptor C18",
		"brand":     "Restek",
		"phmin":     "9",
		"phmax":     "2",
	}

	_, errs := rowToProduct(row, 4)
	require.Len(t, errs, 1)
	assert.Equal(t, "INVALID_RANGE", errs[0].Code)
}

func TestRowToProductBadStatus(t *testing.T) {
	row := map[string]string{
		"productid": "REST-1",
		"name":      "Raptor C18",
		"brand":     "Restek",
		"status":    "retired",
	}

	_, errs := rowToProduct(row, 6)
	require.Len(t, errs, 1)
	assert.Equal(t, "INVALID_STATUS", errs[0].Code)
}

func TestParseCSV(t *testing.T) {
	csvData := "productId *,name,brand\nREST-1,Raptor C18,Restek\nWAT-2,XBridge C8,Waters\n"
	h := &ImportHandler{}

	rows, err := h.parseCSV(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "REST-1", rows[0]["productid"])
	assert.Equal(t, "XBridge C8", rows[1]["name"])
	assert.Equal(t, "2", rows[0]["_row"])
	assert.Equal(t, "3", rows[1]["_row"])
}

func TestNormalizeHeaders(t *testing.T) {
	headers := []string{"ProductId *", "  Name ", "BRAND"}
	normalizeHeaders(headers)
	assert.Equal(t, []string{"productid", "name", "brand"}, headers)
}
