package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/mailer"
	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/mykafka"
	"github.com/duadua/marketplace/internal/search"
	"github.com/duadua/marketplace/internal/slugs"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Search   *search.Index
	Mailer   *mailer.Mailer
}

// openProducts scopes a query to products customers may see and buy.
func openProducts(db *gorm.DB) *gorm.DB {
	return db.Where("status = ? AND approval_status = ?", models.ProductAvailable, models.ApprovalApproved)
}

func (h *ProductHandler) syncSearch(c echo.Context, product *models.Product) {
	if err := h.Search.Sync(c.Request().Context(), product); err != nil {
		c.Logger().Errorf("search sync error: %v", err)
	}
}

// Index is the public catalog listing: open products only, filterable by
// category, price range and free-text query.
func (h *ProductHandler) Index(c echo.Context) error {
	page, offset, limit := pageParams(c)

	q := openProducts(h.DB.Model(&models.Product{}))
	if v := c.QueryParam("category"); v != "" {
		category, err := slugs.ResolveCategory(h.DB, v)
		if err != nil {
			var moved *slugs.ErrMoved
			if errors.As(err, &moved) {
				category, err = slugs.ResolveCategory(h.DB, moved.CurrentSlug)
			}
			if err != nil {
				return echo.NewHTTPError(http.StatusNotFound, "category not found")
			}
		}
		q = q.Where("category_id = ?", category.ID)
	}
	if v := c.QueryParam("min_price"); v != "" {
		q = q.Where("price >= ?", v)
	}
	if v := c.QueryParam("max_price"); v != "" {
		q = q.Where("price <= ?", v)
	}
	if v := strings.TrimSpace(c.QueryParam("q")); v != "" {
		like := "%" + v + "%"
		q = q.Where("name LIKE ? OR description LIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}

	order := "created_at DESC"
	switch c.QueryParam("sort") {
	case "price_asc":
		order = "price ASC"
	case "price_desc":
		order = "price DESC"
	case "oldest":
		order = "created_at ASC"
	}

	var items []models.Product
	if err := q.Preload("Category").Order(order).Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	return listResponse(c, items, page, limit, total)
}

// Show resolves by id or slug; a retired slug answers with a permanent
// redirect to the current one.
func (h *ProductHandler) Show(c echo.Context) error {
	product, err := slugs.ResolveProduct(h.DB, c.Param("identifier"))
	if err != nil {
		var moved *slugs.ErrMoved
		if errors.As(err, &moved) {
			return movedPermanently(c, "/api/v1/products", moved)
		}
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	if !product.Open() {
		// Owners and admins may still inspect a hidden listing.
		role := auth.Role(c)
		if role != models.RoleAdmin && auth.UserID(c) != product.UserID {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
	}
	if err := h.DB.Preload("Options").Preload("Category").Preload("User").
		First(product, product.ID).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load product")
	}
	if product.User != nil {
		product.User.PasswordHash = ""
	}
	return c.JSON(http.StatusOK, product)
}

// Related lists open products sharing the category, excluding the product
// itself.
func (h *ProductHandler) Related(c echo.Context) error {
	product, err := slugs.ResolveProduct(h.DB, c.Param("identifier"))
	if err != nil {
		var moved *slugs.ErrMoved
		if errors.As(err, &moved) {
			return movedPermanently(c, "/api/v1/products", moved)
		}
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var items []models.Product
	q := openProducts(h.DB).Where("id <> ?", product.ID).Limit(8)
	if product.CategoryID != nil {
		q = q.Where("category_id = ?", *product.CategoryID)
	}
	if err := q.Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	return c.JSON(http.StatusOK, items)
}

// ByVendor lists a vendor's open products.
func (h *ProductHandler) ByVendor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	page, offset, limit := pageParams(c)

	q := openProducts(h.DB.Model(&models.Product{})).Where("user_id = ?", id)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}
	var items []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	return listResponse(c, items, page, limit, total)
}

type productRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       *float64        `json:"price"`
	Stock       *int            `json:"stock"`
	CategoryID  *uint           `json:"category_id"`
	Image       string          `json:"image"`
	Images      datatypes.JSON  `json:"images"`
	Tags        datatypes.JSON  `json:"tags"`
	Options     []optionRequest `json:"options"`
}

type optionRequest struct {
	Name   string         `json:"name"`
	Values datatypes.JSON `json:"values"`
}

// Create adds a vendor listing. New listings start pending moderation and are
// invisible to customers until approved.
func (h *ProductHandler) Create(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Price == nil || *req.Price <= 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name and a positive price are required")
	}

	product := models.Product{
		UserID:      auth.UserID(c),
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Status:      models.ProductAvailable,
		Approval:    models.ApprovalPending,
		Image:       req.Image,
		Images:      req.Images,
		Tags:        req.Tags,
	}
	if req.Stock != nil && *req.Stock > 0 {
		product.Stock = *req.Stock
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := slugs.Generate(tx, "products", req.Name, 0)
		if err != nil {
			return err
		}
		product.Slug = slug
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		for _, opt := range req.Options {
			if opt.Name == "" {
				continue
			}
			option := models.ProductOption{ProductID: product.ID, Name: opt.Name, Values: opt.Values}
			if err := tx.Create(&option).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create product")
	}

	publish(c, h.Producer, "product_events", product.Slug, map[string]any{
		"type":      "product_created",
		"productID": product.ID,
		"vendorID":  product.UserID,
	})
	return c.JSON(http.StatusCreated, product)
}

func (h *ProductHandler) loadOwned(c echo.Context) (*models.Product, error) {
	id, err := parseID(c)
	if err != nil {
		return nil, err
	}
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	if auth.Role(c) != models.RoleAdmin && product.UserID != auth.UserID(c) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not your product")
	}
	return &product, nil
}

// Update edits a listing. A name change generates a fresh slug and records the
// old one so existing links keep working.
func (h *ProductHandler) Update(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Name != "" && req.Name != product.Name {
			newSlug, err := slugs.Generate(tx, "products", req.Name, product.ID)
			if err != nil {
				return err
			}
			if newSlug != product.Slug {
				if err := slugs.RecordRedirect(tx, models.KindProduct, product.ID, product.Slug); err != nil {
					return err
				}
				product.Slug = newSlug
			}
			product.Name = req.Name
		}
		if req.Description != "" {
			product.Description = req.Description
		}
		if req.Price != nil {
			if *req.Price <= 0 {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, "price must be positive")
			}
			product.Price = *req.Price
		}
		if req.Stock != nil {
			if *req.Stock < 0 {
				return echo.NewHTTPError(http.StatusUnprocessableEntity, "stock cannot be negative")
			}
			product.Stock = *req.Stock
		}
		if req.CategoryID != nil {
			product.CategoryID = req.CategoryID
		}
		if req.Image != "" {
			product.Image = req.Image
		}
		if req.Images != nil {
			product.Images = req.Images
		}
		if req.Tags != nil {
			product.Tags = req.Tags
		}
		if err := tx.Save(product).Error; err != nil {
			return err
		}
		if req.Options != nil {
			if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductOption{}).Error; err != nil {
				return err
			}
			for _, opt := range req.Options {
				if opt.Name == "" {
					continue
				}
				option := models.ProductOption{ProductID: product.ID, Name: opt.Name, Values: opt.Values}
				if err := tx.Create(&option).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update product")
	}

	h.syncSearch(c, product)
	publish(c, h.Producer, "product_events", product.Slug, map[string]any{
		"type":      "product_updated",
		"productID": product.ID,
	})
	return c.JSON(http.StatusOK, product)
}

// Delete soft-deletes a listing; customers stop seeing it immediately.
func (h *ProductHandler) Delete(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	if err := h.DB.Delete(product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete product")
	}
	if err := h.Search.Remove(c.Request().Context(), product.ID); err != nil {
		c.Logger().Errorf("search remove error: %v", err)
	}
	publish(c, h.Producer, "product_events", product.Slug, map[string]any{
		"type":      "product_deleted",
		"productID": product.ID,
	})
	return c.NoContent(http.StatusNoContent)
}

// UpdateStatus lets the owner toggle availability or archive the listing.
func (h *ProductHandler) UpdateStatus(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	switch req.Status {
	case models.ProductAvailable, models.ProductUnavailable, models.ProductArchived:
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown status")
	}
	product.Status = req.Status
	if err := h.DB.Save(product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update status")
	}
	h.syncSearch(c, product)
	return c.JSON(http.StatusOK, product)
}

// UpdateStock sets absolute stock for a listing.
func (h *ProductHandler) UpdateStock(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req struct {
		Stock *int `json:"stock"`
	}
	if err := c.Bind(&req); err != nil || req.Stock == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "stock is required")
	}
	if *req.Stock < 0 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "stock cannot be negative")
	}
	product.Stock = *req.Stock
	if err := h.DB.Save(product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update stock")
	}
	return c.JSON(http.StatusOK, product)
}

// MyProducts lists everything the vendor owns, whatever the state.
func (h *ProductHandler) MyProducts(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.Product{}).Where("user_id = ?", auth.UserID(c))
	if v := c.QueryParam("status"); v != "" {
		q = q.Where("status = ?", v)
	}
	if v := c.QueryParam("approval"); v != "" {
		q = q.Where("approval_status = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}
	var items []models.Product
	if err := q.Preload("Options").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	return listResponse(c, items, page, limit, total)
}

// Archived lists the vendor's soft-deleted and archived listings.
func (h *ProductHandler) Archived(c echo.Context) error {
	var items []models.Product
	err := h.DB.Unscoped().
		Where("user_id = ?", auth.UserID(c)).
		Where("deleted_at IS NOT NULL OR status = ?", models.ProductArchived).
		Order("updated_at DESC").
		Find(&items).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	return c.JSON(http.StatusOK, items)
}

// AdminIndex lists every product with optional approval/status filters.
func (h *ProductHandler) AdminIndex(c echo.Context) error {
	page, offset, limit := pageParams(c)
	q := h.DB.Model(&models.Product{})
	if v := c.QueryParam("approval"); v != "" {
		q = q.Where("approval_status = ?", v)
	}
	if v := c.QueryParam("status"); v != "" {
		q = q.Where("status = ?", v)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to count products")
	}
	var items []models.Product
	if err := q.Preload("User").Order("created_at DESC").
		Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
	}
	for i := range items {
		if items[i].User != nil {
			items[i].User.PasswordHash = ""
		}
	}
	return listResponse(c, items, page, limit, total)
}

// Moderate sets a listing's approval verdict and notifies the vendor.
func (h *ProductHandler) Moderate(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Approval string `json:"approval_status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	switch req.Approval {
	case models.ApprovalApproved, models.ApprovalRejected, models.ApprovalPending:
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown approval status")
	}

	var product models.Product
	if err := h.DB.Preload("User").First(&product, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	product.Approval = req.Approval
	if err := h.DB.Save(&product).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update product")
	}

	h.syncSearch(c, &product)
	if product.User != nil {
		h.Mailer.SendProductApproval(product.User.Email, product.Name, req.Approval)
	}
	publish(c, h.Producer, "product_events", product.Slug, map[string]any{
		"type":      "product_moderated",
		"productID": product.ID,
		"verdict":   req.Approval,
	})
	return c.JSON(http.StatusOK, product)
}

// BulkAction applies one action to a batch of products. Vendors are limited
// to their own listings and cannot touch approval status.
func (h *ProductHandler) BulkAction(c echo.Context) error {
	var req struct {
		Action string `json:"action"`
		Status string `json:"status"`
		IDs    []uint `json:"ids"`
	}
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "action and ids are required")
	}

	isAdmin := auth.Role(c) == models.RoleAdmin

	scope := h.DB.Model(&models.Product{}).Where("id IN ?", req.IDs)
	if !isAdmin {
		scope = scope.Where("user_id = ?", auth.UserID(c))
	}

	updates := map[string]any{}
	switch req.Action {
	case "approve":
		if !isAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "only admins can change approval")
		}
		updates["approval_status"] = models.ApprovalApproved
	case "reject":
		if !isAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "only admins can change approval")
		}
		updates["approval_status"] = models.ApprovalRejected
	case "archive":
		updates["status"] = models.ProductArchived
	case "unarchive":
		updates["status"] = models.ProductAvailable
	case "update_status":
		switch req.Status {
		case models.ProductAvailable, models.ProductUnavailable, models.ProductArchived:
			updates["status"] = req.Status
		default:
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown status")
		}
	case "delete":
		result := scope.Delete(&models.Product{})
		if result.Error != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to apply action")
		}
		for _, id := range req.IDs {
			h.Search.Remove(c.Request().Context(), id)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"action":   req.Action,
			"affected": result.RowsAffected,
		})
	default:
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "unknown action")
	}

	result := scope.Updates(updates)
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to apply action")
	}

	var affected []models.Product
	if err := h.DB.Where("id IN ?", req.IDs).Find(&affected).Error; err == nil {
		for i := range affected {
			h.syncSearch(c, &affected[i])
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"action":   req.Action,
		"affected": result.RowsAffected,
	})
}
