package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
)

// AdminHandler backs the back-office dashboard.
type AdminHandler struct {
	DB *gorm.DB
}

// Dashboard returns headline counts and revenue for the admin landing page.
func (h *AdminHandler) Dashboard(c echo.Context) error {
	var (
		users, vendors, products, pendingProducts int64
		orders, pendingSettlements                int64
		revenue                                   float64
	)
	h.DB.Model(&models.User{}).Count(&users)
	h.DB.Model(&models.User{}).Where("role = ?", models.RoleVendor).Count(&vendors)
	h.DB.Model(&models.Product{}).Count(&products)
	h.DB.Model(&models.Product{}).Where("approval_status = ?", models.ApprovalPending).Count(&pendingProducts)
	h.DB.Model(&models.Order{}).Count(&orders)
	h.DB.Model(&models.Settlement{}).Where("status = ?", models.SettlementPending).Count(&pendingSettlements)
	h.DB.Model(&models.Order{}).
		Where("status IN ?", []string{models.OrderPaid, models.OrderCompleted, models.OrderSettled}).
		Select("COALESCE(SUM(total_amount), 0)").Scan(&revenue)

	return c.JSON(http.StatusOK, map[string]any{
		"users":               users,
		"vendors":             vendors,
		"products":            products,
		"pending_products":    pendingProducts,
		"orders":              orders,
		"pending_settlements": pendingSettlements,
		"revenue":             revenue,
	})
}

// Carts lists live carts with their contents, for abandonment review.
func (h *AdminHandler) Carts(c echo.Context) error {
	page, offset, limit := pageParams(c)
	var total int64
	if err := h.DB.Model(&models.Cart{}).Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count carts")
	}
	var carts []models.Cart
	if err := h.DB.Preload("Items").Preload("Items.Product").
		Order("updated_at DESC").Offset(offset).Limit(limit).Find(&carts).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load carts")
	}

	type cartRow struct {
		models.Cart
		Abandoned bool `json:"abandoned"`
	}
	rows := make([]cartRow, len(carts))
	for i, cart := range carts {
		rows[i] = cartRow{Cart: cart, Abandoned: time.Since(cart.UpdatedAt) > 24*time.Hour}
	}
	return listResponse(c, rows, page, limit, total)
}

// Users lists accounts with an optional role filter.
func (h *AdminHandler) Users(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.User{})
	if v := c.QueryParam("role"); v != "" {
		q = q.Where("role = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count users")
	}
	var users []models.User
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load users")
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return listResponse(c, users, page, limit, total)
}

// Orders lists every order with an optional status filter.
func (h *AdminHandler) Orders(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.Order{})
	if v := c.QueryParam("status"); v != "" {
		q = q.Where("status = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count orders")
	}
	var orders []models.Order
	if err := q.Preload("Items").Preload("Transactions").Preload("Settlement").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load orders")
	}
	return listResponse(c, orders, page, limit, total)
}
