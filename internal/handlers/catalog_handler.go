package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"catalog-service/internal/models"
	"catalog-service/internal/repository"
)

// CatalogHandler serves the public read side: faceted product search,
// product lookup, brands and the category graph.
type CatalogHandler struct {
	products   *repository.CatalogRepository
	categories *repository.CategoryRepository
}

func NewCatalogHandler(products *repository.CatalogRepository, categories *repository.CategoryRepository) *CatalogHandler {
	return &CatalogHandler{
		products:   products,
		categories: categories,
	}
}

// respondError maps the error taxonomy onto HTTP statuses with the
// standard envelope.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "NOT_FOUND", Message: err.Error()},
		})
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "VALIDATION_ERROR", Message: err.Error()},
		})
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrConstraintViolation):
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "CONFLICT", Message: err.Error()},
		})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Success: false,
			Error:   models.Error{Code: "INTERNAL_ERROR", Message: err.Error()},
		})
	}
}

func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error:   models.Error{Code: "VALIDATION_ERROR", Message: message},
	})
}

// SearchProducts runs a faceted product query
// @Summary Search products
// @Description Search active products with facet filters, pagination defaults to 24 per page
// @Tags Products
// @Accept json
// @Produce json
// @Param request body models.SearchProductsRequest true "Facet filters"
// @Success 200 {object} models.ProductListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /products/search [post]
func (h *CatalogHandler) SearchProducts(c *gin.Context) {
	var req models.SearchProductsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidationError(c, err.Error())
		return
	}

	products, total, err := h.products.SearchProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductListResponse{
		Success:    true,
		Data:       products,
		Pagination: models.NewPaginationInfo(req.Page, req.PageSize, total),
	})
}

// GetProduct returns a single product by its catalog identifier
// @Summary Get product
// @Tags Products
// @Produce json
// @Param productId path string true "Catalog product id"
// @Success 200 {object} models.ProductResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /products/{productId} [get]
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.products.GetProductByProductID(c.Request.Context(), c.Param("productId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ProductResponse{Success: true, Data: product})
}

// ListBrands returns the distinct brands with active products
// @Summary List brands
// @Tags Products
// @Produce json
// @Success 200 {object} models.BrandListResponse
// @Router /brands [get]
func (h *CatalogHandler) ListBrands(c *gin.Context) {
	brands, err := h.products.ListBrands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BrandListResponse{Success: true, Data: brands})
}

// GetCategoryTree returns the visible category forest
// @Summary Get category tree
// @Tags Categories
// @Produce json
// @Success 200 {object} models.CategoryTreeResponse
// @Router /categories/tree [get]
func (h *CatalogHandler) GetCategoryTree(c *gin.Context) {
	tree, err := h.categories.Tree(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CategoryTreeResponse{Success: true, Data: tree})
}

// GetCategory returns one category by id or slug
// @Summary Get category
// @Tags Categories
// @Produce json
// @Param idOrSlug path string true "Category id or slug"
// @Success 200 {object} models.CategoryResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{idOrSlug} [get]
func (h *CatalogHandler) GetCategory(c *gin.Context) {
	category, err := h.lookupCategory(c)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CategoryResponse{Success: true, Data: category})
}

// GetCategoryChildren returns the direct children of a category
// @Summary Get category children
// @Tags Categories
// @Produce json
// @Param idOrSlug path string true "Category id or slug"
// @Success 200 {object} models.CategoryListResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{idOrSlug}/children [get]
func (h *CatalogHandler) GetCategoryChildren(c *gin.Context) {
	category, err := h.lookupCategory(c)
	if err != nil {
		respondError(c, err)
		return
	}

	children, err := h.categories.Children(c.Request.Context(), category.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CategoryListResponse{Success: true, Data: children})
}

// GetCategoryAncestors returns the path from the root to a category
// @Summary Get category ancestors
// @Description Breadcrumb path ordered root first, ending at the category itself
// @Tags Categories
// @Produce json
// @Param idOrSlug path string true "Category id or slug"
// @Success 200 {object} models.CategoryListResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{idOrSlug}/ancestors [get]
func (h *CatalogHandler) GetCategoryAncestors(c *gin.Context) {
	category, err := h.lookupCategory(c)
	if err != nil {
		respondError(c, err)
		return
	}

	ancestors, err := h.categories.Ancestors(c.Request.Context(), category.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.CategoryListResponse{Success: true, Data: ancestors})
}

// lookupCategory resolves the idOrSlug path parameter, numeric values are
// treated as row ids.
func (h *CatalogHandler) lookupCategory(c *gin.Context) (*models.Category, error) {
	param := c.Param("idOrSlug")
	if id, err := strconv.ParseUint(param, 10, 32); err == nil {
		return h.categories.GetByID(c.Request.Context(), uint(id))
	}
	return h.categories.GetBySlug(c.Request.Context(), param)
}
