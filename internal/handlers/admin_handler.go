package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/audit"
	"catalog-service/internal/classifier"
	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// AdminHandler serves the write-side maintenance operations:
// classification, consistency audits, repairs and data enrichment.
type AdminHandler struct {
	engine   *classifier.Engine
	auditor  *audit.Auditor
	repairer *audit.Repairer
	catalog  *repository.CatalogRepository
}

func NewAdminHandler(engine *classifier.Engine, auditor *audit.Auditor, repairer *audit.Repairer, catalog *repository.CatalogRepository) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		auditor:  auditor,
		repairer: repairer,
		catalog:  catalog,
	}
}

// ClassifyProductsRequest selects products for an explicit classification run.
type ClassifyProductsRequest struct {
	ProductIDs []string `json:"productIds" binding:"required,min=1,max=500"`
}

// OrphanPageRequest selects one page of orphaned products.
type OrphanPageRequest struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RepairRequest selects a violation class and page to repair.
type RepairRequest struct {
	Class  string `json:"class" binding:"required"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

// ClassifyProduct classifies a single product
// @Summary Classify product
// @Description Run classification rules and install the winning category as primary
// @Tags Classification
// @Produce json
// @Param productId path string true "Catalog product id"
// @Success 200 {object} models.SuccessResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /admin/classify/products/{productId} [post]
func (h *AdminHandler) ClassifyProduct(c *gin.Context) {
	result, err := h.engine.Classify(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// ClassifyProducts classifies a batch of products best-effort
// @Summary Classify products
// @Tags Classification
// @Accept json
// @Produce json
// @Param request body ClassifyProductsRequest true "Product ids"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/classify/products [post]
func (h *AdminHandler) ClassifyProducts(c *gin.Context) {
	var req ClassifyProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result := h.engine.ClassifyBatch(c.Request.Context(), req.ProductIDs)
	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// ClassifyOrphans classifies one page of unassociated products
// @Summary Classify orphans
// @Description Classify active products without category associations, one resumable page at a time
// @Tags Classification
// @Accept json
// @Produce json
// @Param request body OrphanPageRequest true "Page bounds"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/classify/orphans [post]
func (h *AdminHandler) ClassifyOrphans(c *gin.Context) {
	req := OrphanPageRequest{Limit: 200}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	result, err := h.engine.ClassifyOrphans(c.Request.Context(), req.Offset, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// BackfillUSP fills missing USP codes from product name keywords
// @Summary Backfill USP codes
// @Description Assign USP phase codes to products whose usp column is empty, based on name keywords
// @Tags Consistency
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /admin/enrich/usp [post]
func (h *AdminHandler) BackfillUSP(c *gin.Context) {
	result, err := h.catalog.BackfillUSP(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}

// AuditCatalog reports association consistency
// @Summary Audit catalog
// @Description Count orphan, duplicate, multi-primary and mismatch violations with samples
// @Tags Consistency
// @Produce json
// @Success 200 {object} models.SuccessResponse
// @Router /admin/audit [get]
func (h *AdminHandler) AuditCatalog(c *gin.Context) {
	report, err := h.auditor.Audit(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: report})
}

// RepairCatalog repairs one page of one violation class
// @Summary Repair catalog
// @Tags Consistency
// @Accept json
// @Produce json
// @Param request body RepairRequest true "Violation class and page bounds"
// @Success 200 {object} models.SuccessResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /admin/repair [post]
func (h *AdminHandler) RepairCatalog(c *gin.Context) {
	req := RepairRequest{Limit: 200}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	class, err := audit.ParseClass(req.Class)
	if err != nil {
		respondValidationError(c, "class must be one of orphan, duplicate, multi-primary, mismatch")
		return
	}

	result, err := h.repairer.Repair(c.Request.Context(), class, req.Offset, req.Limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{Success: true, Data: result})
}
