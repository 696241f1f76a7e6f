package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/slugs"
)

type CategoryHandler struct {
	DB *gorm.DB
}

func (h *CategoryHandler) Index(c echo.Context) error {
	var items []models.Category
	if err := h.DB.Order("name ASC").Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load categories")
	}
	return c.JSON(http.StatusOK, items)
}

// Show resolves by id or slug and includes the category's open products.
func (h *CategoryHandler) Show(c echo.Context) error {
	category, err := slugs.ResolveCategory(h.DB, c.Param("identifier"))
	if err != nil {
		var moved *slugs.ErrMoved
		if errors.As(err, &moved) {
			return movedPermanently(c, "/api/v1/categories", moved)
		}
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}

	page, offset, limit := pageParams(c)
	q := openProducts(h.DB.Model(&models.Product{})).Where("category_id = ?", category.ID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}
	var products []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"category": category,
		"products": products,
		"meta": map[string]any{
			"page":  page,
			"size":  limit,
			"total": total,
		},
	})
}

func (h *CategoryHandler) Create(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Image       string `json:"image"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}

	category := models.Category{Name: req.Name, Description: req.Description, Image: req.Image}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := slugs.Generate(tx, "categories", req.Name, 0)
		if err != nil {
			return err
		}
		category.Slug = slug
		return tx.Create(&category).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return echo.NewHTTPError(http.StatusConflict, "category already exists")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create category")
	}
	return c.JSON(http.StatusCreated, category)
}

func (h *CategoryHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Image       string `json:"image"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Name != "" && req.Name != category.Name {
			newSlug, err := slugs.Generate(tx, "categories", req.Name, category.ID)
			if err != nil {
				return err
			}
			if newSlug != category.Slug {
				if err := slugs.RecordRedirect(tx, models.KindCategory, category.ID, category.Slug); err != nil {
					return err
				}
				category.Slug = newSlug
			}
			category.Name = req.Name
		}
		if req.Description != "" {
			category.Description = req.Description
		}
		if req.Image != "" {
			category.Image = req.Image
		}
		return tx.Save(&category).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update category")
	}
	return c.JSON(http.StatusOK, category)
}

// AddProducts assigns a batch of products to the category.
func (h *CategoryHandler) AddProducts(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var category models.Category
	if err := h.DB.First(&category, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}
	var req struct {
		ProductIDs []uint `json:"product_ids"`
	}
	if err := c.Bind(&req); err != nil || len(req.ProductIDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_ids is required")
	}
	result := h.DB.Model(&models.Product{}).
		Where("id IN ?", req.ProductIDs).
		Update("category_id", category.ID)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to assign products")
	}
	return c.JSON(http.StatusOK, map[string]any{"assigned": result.RowsAffected})
}

// RemoveProduct detaches a product from the category, leaving it
// uncategorized.
func (h *CategoryHandler) RemoveProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	result := h.DB.Model(&models.Product{}).
		Where("id = ? AND category_id = ?", c.Param("productID"), id).
		Update("category_id", nil)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to detach product")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "product not in category")
	}
	return c.NoContent(http.StatusNoContent)
}

// AvailableProducts lists products not yet in the category, for the
// back-office assignment picker.
func (h *CategoryHandler) AvailableProducts(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.Product{}).
		Where("category_id IS NULL OR category_id <> ?", id)
	if v := c.QueryParam("q"); v != "" {
		q = q.Where("name LIKE ?", "%"+v+"%")
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}
	var products []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	return listResponse(c, products, page, limit, total)
}

// Delete removes an empty category. Categories with products are kept to
// avoid orphaning listings.
func (h *CategoryHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var count int64
	if err := h.DB.Model(&models.Product{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check category")
	}
	if count > 0 {
		return echo.NewHTTPError(http.StatusConflict, "category still has products")
	}
	result := h.DB.Delete(&models.Category{}, id)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete category")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "category not found")
	}
	return c.NoContent(http.StatusNoContent)
}
