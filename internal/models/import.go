package models

// ImportFormat represents the file format for import
type ImportFormat string

const (
	ImportFormatCSV  ImportFormat = "csv"
	ImportFormatXLSX ImportFormat = "xlsx"
	ImportFormatJSON ImportFormat = "json"
)

// ImportTemplateColumn defines a column in the import template
type ImportTemplateColumn struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Type        string `json:"type"` // string, number
	Example     string `json:"example"`
}

// ImportTemplate defines the structure of an import template
type ImportTemplate struct {
	Entity  string                 `json:"entity"`
	Version string                 `json:"version"`
	Columns []ImportTemplateColumn `json:"columns"`
}

// ImportRowError represents an error for a specific row
type ImportRowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Success      bool             `json:"success"`
	TotalRows    int              `json:"totalRows"`
	SuccessCount int              `json:"successCount"`
	CreatedCount int              `json:"createdCount"`
	UpdatedCount int              `json:"updatedCount"`
	FailedCount  int              `json:"failedCount"`
	SkippedCount int              `json:"skippedCount"`
	Errors       []ImportRowError `json:"errors,omitempty"`
	CreatedIDs   []string         `json:"createdIds,omitempty"`
	UpdatedIDs   []string         `json:"updatedIds,omitempty"`
}

// ImportRequest represents import configuration
type ImportRequest struct {
	SkipHeader   bool `json:"skipHeader"`   // defaults to true
	ValidateOnly bool `json:"validateOnly"` // dry run mode
	Classify     bool `json:"classify"`     // run classification after upsert
}

// BulkUpsertRequest carries products posted as JSON for merge-upsert.
// Authoritative lets non-empty incoming values overwrite populated fields
// instead of only filling gaps.
type BulkUpsertRequest struct {
	Products      []Product `json:"products" binding:"required,min=1,max=500"`
	Authoritative bool      `json:"authoritative"`
	Classify      bool      `json:"classify"`
}

// BulkUpsertItemResult reports the outcome for a single product in a bulk request.
type BulkUpsertItemResult struct {
	ProductID string `json:"productId"`
	Created   bool   `json:"created"`
	Error     string `json:"error,omitempty"`
}

// BulkUpsertResult aggregates the outcomes of a bulk upsert.
type BulkUpsertResult struct {
	Success      bool                   `json:"success"`
	TotalCount   int                    `json:"totalCount"`
	CreatedCount int                    `json:"createdCount"`
	UpdatedCount int                    `json:"updatedCount"`
	FailedCount  int                    `json:"failedCount"`
	Items        []BulkUpsertItemResult `json:"items"`
}

// ProductImportColumns returns the column definitions for product import
func ProductImportColumns() []ImportTemplateColumn {
	return []ImportTemplateColumn{
		{Name: "productId", Description: "Unique catalog identifier", Required: true, Type: "string", Example: "REST-9314A12"},
		{Name: "name", Description: "Product name", Required: true, Type: "string", Example: "Raptor C18 2.7um 100x2.1mm"},
		{Name: "brand", Description: "Brand name", Required: true, Type: "string", Example: "Restek"},
		{Name: "partNumber", Description: "Manufacturer part number", Required: false, Type: "string", Example: "9314A12"},
		{Name: "description", Description: "Product description", Required: false, Type: "string", Example: ""},
		{Name: "particleSize", Description: "Particle size in micrometers", Required: false, Type: "number", Example: "2.7"},
		{Name: "poreSize", Description: "Pore size in angstroms", Required: false, Type: "number", Example: "90"},
		{Name: "columnLength", Description: "Column length in millimeters", Required: false, Type: "number", Example: "100"},
		{Name: "innerDiameter", Description: "Inner diameter in millimeters", Required: false, Type: "number", Example: "2.1"},
		{Name: "phMin", Description: "Lower bound of usable pH range", Required: false, Type: "number", Example: "1.0"},
		{Name: "phMax", Description: "Upper bound of usable pH range", Required: false, Type: "number", Example: "8.0"},
		{Name: "phaseType", Description: "Stationary phase type", Required: false, Type: "string", Example: "C18"},
		{Name: "usp", Description: "Comma-separated USP designations", Required: false, Type: "string", Example: "L1,L7"},
		{Name: "maxPressure", Description: "Maximum operating pressure", Required: false, Type: "string", Example: "600 bar"},
		{Name: "maxTemperature", Description: "Maximum operating temperature", Required: false, Type: "string", Example: "80 C"},
		{Name: "applications", Description: "Typical applications", Required: false, Type: "string", Example: ""},
		{Name: "imageUrl", Description: "Product image URL", Required: false, Type: "string", Example: ""},
		{Name: "catalogUrl", Description: "Manufacturer catalog page URL", Required: false, Type: "string", Example: ""},
		{Name: "status", Description: "active or inactive (defaults to active)", Required: false, Type: "string", Example: "active"},
	}
}

// ProductImportTemplate returns the template definition for products
func ProductImportTemplate() ImportTemplate {
	return ImportTemplate{
		Entity:  "products",
		Version: "1.0",
		Columns: ProductImportColumns(),
	}
}
