package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"catalog-service/internal/classifier"
	"catalog-service/internal/events"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// UpsertBatchSize caps how many rows go into a single repository call.
const UpsertBatchSize = 500

// ImportHandler ingests catalog data: CSV/XLSX file imports and JSON bulk
// upserts, with optional classification of the touched products.
type ImportHandler struct {
	repo       *repository.CatalogRepository
	engine     *classifier.Engine
	publisher  *events.Publisher
	maxRows    int
	classifyBy int
}

// NewImportHandler wires the ingest side. publisher may be nil when the
// broker is disabled.
func NewImportHandler(repo *repository.CatalogRepository, engine *classifier.Engine, publisher *events.Publisher, maxRows, classifyBatchSize int) *ImportHandler {
	return &ImportHandler{
		repo:       repo,
		engine:     engine,
		publisher:  publisher,
		maxRows:    maxRows,
		classifyBy: classifyBatchSize,
	}
}

// GetImportTemplate returns the import template definition or file
// @Summary Get import template
// @Tags Import
// @Produce json
// @Param format query string false "json, csv or xlsx" default(json)
// @Success 200 {object} models.SuccessResponse
// @Router /admin/products/import/template [get]
func (h *ImportHandler) GetImportTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "json")

	template := models.ProductImportTemplate()

	switch format {
	case "csv":
		h.generateCSVTemplate(c, template)
	case "xlsx":
		h.generateXLSXTemplate(c, template)
	default:
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"template": template,
		})
	}
}

// generateCSVTemplate generates and downloads a CSV template (headers only)
func (h *ImportHandler) generateCSVTemplate(c *gin.Context, template models.ImportTemplate) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.csv")

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	headers := make([]string, len(template.Columns))
	for i, col := range template.Columns {
		headers[i] = col.Name
	}
	writer.Write(headers)
}

// generateXLSXTemplate generates and downloads an Excel template
func (h *ImportHandler) generateXLSXTemplate(c *gin.Context, template models.ImportTemplate) {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Products"
	f.SetSheetName("Sheet1", sheetName)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	requiredStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C65911"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	for i, col := range template.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		headerText := col.Name
		if col.Required {
			headerText = col.Name + " *"
		}
		f.SetCellValue(sheetName, cell, headerText)

		if col.Required {
			f.SetCellStyle(sheetName, cell, cell, requiredStyle)
		} else {
			f.SetCellStyle(sheetName, cell, cell, headerStyle)
		}

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, 18)
	}

	// Second sheet documents each column.
	f.NewSheet("Instructions")
	f.SetCellValue("Instructions", "A1", "Column")
	f.SetCellValue("Instructions", "B1", "Description")
	f.SetCellValue("Instructions", "C1", "Required")
	f.SetCellValue("Instructions", "D1", "Type")
	f.SetCellValue("Instructions", "E1", "Example")
	for i, col := range template.Columns {
		row := i + 2
		f.SetCellValue("Instructions", fmt.Sprintf("A%d", row), col.Name)
		f.SetCellValue("Instructions", fmt.Sprintf("B%d", row), col.Description)
		f.SetCellValue("Instructions", fmt.Sprintf("C%d", row), col.Required)
		f.SetCellValue("Instructions", fmt.Sprintf("D%d", row), col.Type)
		f.SetCellValue("Instructions", fmt.Sprintf("E%d", row), col.Example)
	}
	f.SetColWidth("Instructions", "A", "A", 20)
	f.SetColWidth("Instructions", "B", "B", 50)
	f.SetColWidth("Instructions", "E", "E", 30)

	sheetIdx, _ := f.GetSheetIndex(sheetName)
	f.SetActiveSheet(sheetIdx)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=products_import_template.xlsx")

	f.Write(c.Writer)
}

// ImportProducts imports products from a CSV or Excel file
// @Summary Import products
// @Description Merge-upsert products from an uploaded file, optionally classifying them afterwards
// @Tags Import
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Param validateOnly formData bool false "Parse and validate without writing"
// @Param authoritative formData bool false "Let incoming values overwrite populated fields"
// @Param classify formData bool false "Classify imported products after upsert"
// @Success 200 {object} models.ImportResult
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/products/import [post]
func (h *ImportHandler) ImportProducts(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "FILE_REQUIRED",
				Message: "Please upload a CSV or Excel file",
			},
		})
		return
	}
	defer file.Close()

	validateOnly := c.DefaultPostForm("validateOnly", "false") == "true"
	authoritative := c.DefaultPostForm("authoritative", "false") == "true"
	classify := c.DefaultPostForm("classify", "false") == "true"

	filename := strings.ToLower(header.Filename)
	var rows []map[string]string
	var parseErr error
	switch {
	case strings.HasSuffix(filename, ".csv"):
		rows, parseErr = h.parseCSV(file)
	case strings.HasSuffix(filename, ".xlsx"):
		rows, parseErr = h.parseXLSX(file)
	default:
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "INVALID_FORMAT",
				Message: "Only CSV and XLSX files are supported",
			},
		})
		return
	}

	if parseErr != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "PARSE_ERROR",
				Message: parseErr.Error(),
			},
		})
		return
	}

	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "EMPTY_FILE",
				Message: "The file contains no data rows",
			},
		})
		return
	}

	if len(rows) > h.maxRows {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "TOO_MANY_ROWS",
				Message: fmt.Sprintf("File has %d rows, the maximum is %d", len(rows), h.maxRows),
			},
		})
		return
	}

	result := h.processImport(c, rows, validateOnly, authoritative, classify)
	c.JSON(http.StatusOK, result)
}

// processImport converts rows, writes them in batches and optionally
// classifies what was written. Row-level failures never abort the run.
func (h *ImportHandler) processImport(c *gin.Context, rows []map[string]string, validateOnly, authoritative, classify bool) *models.ImportResult {
	result := &models.ImportResult{
		TotalRows: len(rows),
		Errors:    make([]models.ImportRowError, 0),
	}

	var products []models.Product
	for _, row := range rows {
		rowNum, _ := strconv.Atoi(row["_row"])
		product, rowErrs := rowToProduct(row, rowNum)
		if len(rowErrs) > 0 {
			result.Errors = append(result.Errors, rowErrs...)
			result.FailedCount++
			continue
		}
		products = append(products, *product)
	}

	if validateOnly {
		result.SuccessCount = len(products)
		result.Success = result.FailedCount == 0
		return result
	}

	for start := 0; start < len(products); start += UpsertBatchSize {
		end := start + UpsertBatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		upserted, err := h.repo.UpsertProducts(c.Request.Context(), batch, authoritative)
		if err != nil {
			for _, p := range batch {
				result.Errors = append(result.Errors, models.ImportRowError{
					Code:    "WRITE_ERROR",
					Message: fmt.Sprintf("%s: %s", p.ProductID, err.Error()),
				})
			}
			result.FailedCount += len(batch)
			continue
		}

		result.CreatedCount += upserted.CreatedCount
		result.UpdatedCount += upserted.UpdatedCount
		result.FailedCount += upserted.FailedCount
		for _, item := range upserted.Items {
			if item.Error != "" {
				result.Errors = append(result.Errors, models.ImportRowError{
					Code:    "WRITE_ERROR",
					Message: fmt.Sprintf("%s: %s", item.ProductID, item.Error),
				})
				continue
			}
			if item.Created {
				result.CreatedIDs = append(result.CreatedIDs, item.ProductID)
			} else {
				result.UpdatedIDs = append(result.UpdatedIDs, item.ProductID)
			}
		}
	}

	result.SuccessCount = result.CreatedCount + result.UpdatedCount
	result.Success = result.FailedCount == 0

	if h.publisher != nil && result.SuccessCount > 0 {
		h.publisher.ProductsImported(c.Request.Context(), result.CreatedCount, result.UpdatedCount, result.FailedCount)
	}

	if classify && result.SuccessCount > 0 {
		touched := append(append([]string{}, result.CreatedIDs...), result.UpdatedIDs...)
		for start := 0; start < len(touched); start += h.classifyBy {
			end := start + h.classifyBy
			if end > len(touched) {
				end = len(touched)
			}
			h.engine.ClassifyBatch(c.Request.Context(), touched[start:end])
		}
	}

	return result
}

// BulkUpsert merge-upserts products posted as JSON
// @Summary Bulk upsert products
// @Tags Import
// @Accept json
// @Produce json
// @Param request body models.BulkUpsertRequest true "Products to upsert"
// @Success 200 {object} models.BulkUpsertResult
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/products/bulk [post]
func (h *ImportHandler) BulkUpsert(c *gin.Context) {
	var req models.BulkUpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.repo.UpsertProducts(c.Request.Context(), req.Products, req.Authoritative)
	if err != nil {
		respondError(c, err)
		return
	}

	if req.Classify {
		var touched []string
		for _, item := range result.Items {
			if item.Error == "" {
				touched = append(touched, item.ProductID)
			}
		}
		if len(touched) > 0 {
			h.engine.ClassifyBatch(c.Request.Context(), touched)
		}
	}

	c.JSON(http.StatusOK, result)
}

// rowToProduct maps one parsed row onto a product, collecting per-column
// errors instead of failing fast.
func rowToProduct(row map[string]string, rowNum int) (*models.Product, []models.ImportRowError) {
	var errs []models.ImportRowError

	addErr := func(column, code, message string) {
		errs = append(errs, models.ImportRowError{
			Row:     rowNum,
			Column:  column,
			Code:    code,
			Message: message,
		})
	}

	product := &models.Product{
		ProductID:  row["productid"],
		Name:       row["name"],
		Brand:      row["brand"],
		PartNumber: row["partnumber"],
	}

	for _, required := range []struct{ column, value string }{
		{"productId", product.ProductID},
		{"name", product.Name},
		{"brand", product.Brand},
	} {
		if required.value == "" {
			addErr(required.column, "REQUIRED_FIELD", required.column+" is required")
		}
	}

	setStr := func(field **string, column string) {
		if v := row[column]; v != "" {
			value := v
			*field = &value
		}
	}
	setStr(&product.Description, "description")
	setStr(&product.PhaseType, "phasetype")
	setStr(&product.USP, "usp")
	setStr(&product.MaxPressure, "maxpressure")
	setStr(&product.MaxTemperature, "maxtemperature")
	setStr(&product.Applications, "applications")
	setStr(&product.ImageURL, "imageurl")
	setStr(&product.CatalogURL, "catalogurl")

	setFloat := func(field **float64, column, label string) {
		v := row[column]
		if v == "" {
			return
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			addErr(label, "INVALID_NUMBER", fmt.Sprintf("%s must be numeric, got %q", label, v))
			return
		}
		*field = &parsed
	}
	setFloat(&product.ParticleSize, "particlesize", "particleSize")
	setFloat(&product.PoreSize, "poresize", "poreSize")
	setFloat(&product.ColumnLength, "columnlength", "columnLength")
	setFloat(&product.InnerDiameter, "innerdiameter", "innerDiameter")
	setFloat(&product.PHMin, "phmin", "phMin")
	setFloat(&product.PHMax, "phmax", "phMax")

	if product.PHMin != nil && product.PHMax != nil && *product.PHMin > *product.PHMax {
		addErr("phMin", "INVALID_RANGE", "phMin must not exceed phMax")
	}

	switch status := row["status"]; status {
	case "", string(models.ProductStatusActive):
		product.Status = models.ProductStatusActive
	case string(models.ProductStatusInactive):
		product.Status = models.ProductStatusInactive
	default:
		addErr("status", "INVALID_STATUS", fmt.Sprintf("status must be active or inactive, got %q", status))
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return product, nil
}

// parseCSV reads a CSV stream into rows keyed by normalized header.
func (h *ImportHandler) parseCSV(file io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(file)

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	normalizeHeaders(headers)

	var rows []map[string]string
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading line %d: %w", lineNum+1, err)
		}

		row := make(map[string]string)
		for i, value := range record {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(lineNum + 1)
		rows = append(rows, row)
		lineNum++
	}

	return rows, nil
}

// parseXLSX reads the first (or "Products") sheet into rows keyed by
// normalized header.
func (h *ImportHandler) parseXLSX(file io.Reader) ([]map[string]string, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	excelRows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}

	if len(excelRows) < 2 {
		return nil, fmt.Errorf("file must have a header row and at least one data row")
	}

	headers := excelRows[0]
	normalizeHeaders(headers)

	var rows []map[string]string
	for rowIdx, excelRow := range excelRows[1:] {
		row := make(map[string]string)
		for i, value := range excelRow {
			if i < len(headers) {
				row[headers[i]] = strings.TrimSpace(value)
			}
		}
		row["_row"] = strconv.Itoa(rowIdx + 2)
		rows = append(rows, row)
	}

	return rows, nil
}

// normalizeHeaders lowercases headers and strips the required marker so
// both downloaded templates and hand-built files parse the same way.
func normalizeHeaders(headers []string) {
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.ToLower(headers[i]))
		headers[i] = strings.TrimSuffix(headers[i], " *")
	}
}
