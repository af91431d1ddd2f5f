package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
	"github.com/yourusername/storefront-api/internal/service"
)

// ProductHandler обрабатывает запросы к каталогу товаров
type ProductHandler struct {
	productService *service.ProductService
}

// NewProductHandler создает новый обработчик каталога
func NewProductHandler(productService *service.ProductService) *ProductHandler {
	return &ProductHandler{productService: productService}
}

// List возвращает страницу каталога с фильтрами
// GET /api/products?category=...&search=...&page=1&per_page=20
func (h *ProductHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	filters := repository.ProductFilters{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}

	result, err := h.productService.List(filters, page, pageSize)
	if err != nil {
		h.handleProductError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get возвращает один товар
func (h *ProductHandler) Get(c *gin.Context) {
	productID := c.MustGet("productID").(uint)

	product, err := h.productService.Get(productID)
	if err != nil {
		h.handleProductError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// Create добавляет товар в каталог (только админ)
func (h *ProductHandler) Create(c *gin.Context) {
	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_request"})
		return
	}

	product, err := h.productService.Create(input)
	if err != nil {
		h.handleProductError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// Update изменяет товар (только админ)
func (h *ProductHandler) Update(c *gin.Context) {
	productID := c.MustGet("productID").(uint)

	var input service.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_request"})
		return
	}

	product, err := h.productService.Update(productID, input)
	if err != nil {
		h.handleProductError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// Delete убирает товар из каталога (только админ)
func (h *ProductHandler) Delete(c *gin.Context) {
	productID := c.MustGet("productID").(uint)

	if err := h.productService.Delete(productID); err != nil {
		h.handleProductError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}

func (h *ProductHandler) handleProductError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}
