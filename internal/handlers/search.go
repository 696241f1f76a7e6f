package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/search"
)

type SearchHandler struct {
	DB    *gorm.DB
	Index *search.Index
}

// Search serves full-text product search from the index, falling back to a
// LIKE query when no index is configured.
func (h *SearchHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("q"))
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	page, offset, limit := pageParams(c)

	if h.Index.Enabled() {
		total, hits, err := h.Index.Search(c.Request().Context(), query, offset, limit)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
		}
		return listResponse(c, hits, page, limit, total)
	}

	like := "%" + query + "%"
	q := openProducts(h.DB.Model(&models.Product{})).
		Where("name LIKE ? OR description LIKE ?", like, like)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	var items []models.Product
	if err := q.Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}
	return listResponse(c, items, page, limit, total)
}
