package handler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/yourusername/storefront-api/internal/domain/entity"
	"github.com/yourusername/storefront-api/internal/domain/repository"
	apperrors "github.com/yourusername/storefront-api/internal/pkg/errors"
	"github.com/yourusername/storefront-api/internal/service"
)

// OrderHandler обрабатывает запросы к заказам: пользовательские и админские
type OrderHandler struct {
	orderService *service.OrderService
}

// NewOrderHandler создает новый обработчик заказов
func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// UpdateStatusRequest представляет запрос на смену статуса заказа
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Create оформляет заказ для текущего пользователя
func (h *OrderHandler) Create(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)

	var input service.OrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "invalid_request"})
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), userID, input)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// List возвращает заказы текущего пользователя
func (h *OrderHandler) List(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	result, err := h.orderService.ListForUser(userID, page, pageSize)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Get возвращает заказ текущего пользователя
func (h *OrderHandler) Get(c *gin.Context) {
	userID := c.MustGet("user_id").(uint)
	orderID := c.MustGet("orderID").(uint)

	order, err := h.orderService.GetForUser(orderID, userID)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// AdminList возвращает заказы с фильтрами для админ-панели
// GET /api/admin/orders?status=...&search=...&date_from=...&date_to=...
func (h *OrderHandler) AdminList(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))

	result, err := h.orderService.ListWithFilters(parseOrderFilters(c), page, pageSize)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AdminGet возвращает любой заказ по ID (только админ)
func (h *OrderHandler) AdminGet(c *gin.Context) {
	orderID := c.MustGet("orderID").(uint)

	order, err := h.orderService.Get(orderID)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateStatus переводит заказ в новый статус (только админ)
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID := c.MustGet("orderID").(uint)

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required", "error_type": "invalid_request"})
		return
	}

	order, err := h.orderService.UpdateStatus(orderID, req.Status)
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Stats возвращает агрегаты для дашборда админ-панели
func (h *OrderHandler) Stats(c *gin.Context) {
	stats, err := h.orderService.GetStats()
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// Export экспортирует заказы в CSV или Excel формате
// GET /api/admin/orders/export?format=csv|xlsx (+ фильтры AdminList)
func (h *OrderHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	orders, err := h.orderService.ExportList(parseOrderFilters(c))
	if err != nil {
		h.handleOrderError(c, err)
		return
	}

	filename := fmt.Sprintf("orders_%s", time.Now().Format("2006-01-02"))

	switch format {
	case "xlsx":
		h.exportXLSX(c, orders, filename)
	default:
		h.exportCSV(c, orders, filename)
	}
}

// exportCSV экспортирует заказы в CSV с правильным экранированием спецсимволов
func (h *OrderHandler) exportCSV(c *gin.Context, orders []entity.Order, filename string) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.csv\"", filename))

	// BOM для корректного отображения UTF-8 в Excel
	c.Writer.Write([]byte{0xEF, 0xBB, 0xBF})

	// Используем encoding/csv для правильного экранирования запятых/кавычек
	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	writer.Write([]string{"Number", "Customer", "Email", "Phone", "Status", "Items", "Total", "Created"})

	for _, o := range orders {
		writer.Write([]string{
			o.Number,
			sanitizeForExcel(o.CustomerName),
			sanitizeForExcel(o.CustomerEmail),
			sanitizeForExcel(o.CustomerPhone),
			o.Status,
			strconv.Itoa(len(o.Items)),
			formatPaise(o.Total),
			o.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

// exportXLSX экспортирует заказы в Excel с использованием StreamWriter
func (h *OrderHandler) exportXLSX(c *gin.Context, orders []entity.Order, filename string) {
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s.xlsx\"", filename))

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Orders"
	f.SetSheetName("Sheet1", sheetName)

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		log.Printf("[OrderHandler] Ошибка создания StreamWriter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create Excel file"})
		return
	}

	headers := []interface{}{"Number", "Customer", "Email", "Phone", "Status", "Items", "Total", "Created"}
	if err := sw.SetRow("A1", headers); err != nil {
		log.Printf("[OrderHandler] Ошибка записи заголовков: %v", err)
	}

	for i, o := range orders {
		cell := fmt.Sprintf("A%d", i+2)
		row := []interface{}{
			o.Number,
			sanitizeForExcel(o.CustomerName),
			sanitizeForExcel(o.CustomerEmail),
			sanitizeForExcel(o.CustomerPhone),
			o.Status,
			len(o.Items),
			formatPaise(o.Total),
			o.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		if err := sw.SetRow(cell, row); err != nil {
			log.Printf("[OrderHandler] Ошибка записи строки %d: %v", i+2, err)
		}
	}

	if err := sw.Flush(); err != nil {
		log.Printf("[OrderHandler] Ошибка при Flush: %v", err)
	}

	if err := f.Write(c.Writer); err != nil {
		log.Printf("[OrderHandler] Ошибка записи Excel в response: %v", err)
	}
}

func parseOrderFilters(c *gin.Context) repository.OrderFilters {
	filters := repository.OrderFilters{
		Status: c.Query("status"),
		Search: c.Query("search"),
	}
	if raw := c.Query("date_from"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			filters.DateFrom = &t
		}
	}
	if raw := c.Query("date_to"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			// Верхняя граница включает весь день
			end := t.Add(24*time.Hour - time.Nanosecond)
			filters.DateTo = &end
		}
	}
	return filters
}

// sanitizeForExcel экранирует данные для защиты от formula injection в Excel/CSV
func sanitizeForExcel(s string) string {
	if len(s) == 0 {
		return s
	}
	// Символы, начинающие формулу в Excel/LibreOffice: = + - @ \t \r
	if s[0] == '=' || s[0] == '+' || s[0] == '-' || s[0] == '@' || s[0] == '\t' || s[0] == '\r' {
		return "'" + s
	}
	return s
}

// formatPaise печатает сумму в рупиях с двумя знаками после запятой.
func formatPaise(paise int64) string {
	return fmt.Sprintf("%d.%02d", paise/100, paise%100)
}

func (h *OrderHandler) handleOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found", "error_type": "not_found"})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "error_type": "validation_error"})
	case errors.Is(err, service.ErrEmptyOrder):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order must contain at least one item", "error_type": "order_has_no_items"})
	case errors.Is(err, service.ErrInsufficientStock):
		c.JSON(http.StatusConflict, gin.H{"error": "Insufficient stock for one of the items", "error_type": "insufficient_stock"})
	case errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "error_type": "invalid_status_transition"})
	default:
		log.Printf("[OrderHandler] order error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Внутренняя ошибка сервера", "error_type": "internal_server_error"})
	}
}
