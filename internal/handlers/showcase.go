package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/slugs"
)

// ShowcaseHandler manages curated product collections shown on storefront
// pages. A set either lists products directly or groups them under named
// placeholders with their own call-to-action copy.
type ShowcaseHandler struct {
	DB *gorm.DB
}

// Index lists active sets with their products and placeholders.
func (h *ShowcaseHandler) Index(c echo.Context) error {
	var sets []models.ShowcaseSet
	err := h.DB.Where("is_active = ?", true).
		Preload("Products", openProducts).
		Preload("Placeholders").
		Preload("Placeholders.Products", openProducts).
		Order("created_at DESC").
		Find(&sets).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load showcases")
	}
	return c.JSON(http.StatusOK, sets)
}

func (h *ShowcaseHandler) Show(c echo.Context) error {
	set, err := slugs.ResolveShowcaseSet(h.DB, c.Param("identifier"))
	if err != nil {
		var moved *slugs.ErrMoved
		if errors.As(err, &moved) {
			return movedPermanently(c, "/api/v1/showcases", moved)
		}
		return echo.NewHTTPError(http.StatusNotFound, "showcase not found")
	}
	err = h.DB.Preload("Products", openProducts).
		Preload("Placeholders").
		Preload("Placeholders.Products", openProducts).
		First(set, set.ID).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load showcase")
	}
	return c.JSON(http.StatusOK, set)
}

func (h *ShowcaseHandler) Create(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "name is required")
	}
	setType := models.ShowcaseStandard
	if req.Type == models.ShowcaseWithPlaceholders {
		setType = models.ShowcaseWithPlaceholders
	}

	set := models.ShowcaseSet{
		Name:        req.Name,
		Description: req.Description,
		Type:        setType,
		IsActive:    true,
	}
	if req.IsActive != nil {
		set.IsActive = *req.IsActive
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		slug, err := slugs.Generate(tx, "showcase_sets", req.Name, 0)
		if err != nil {
			return err
		}
		set.Slug = slug
		return tx.Create(&set).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create showcase")
	}
	return c.JSON(http.StatusCreated, set)
}

func (h *ShowcaseHandler) Update(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var set models.ShowcaseSet
	if err := h.DB.First(&set, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "showcase not found")
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Name != "" && req.Name != set.Name {
			newSlug, err := slugs.Generate(tx, "showcase_sets", req.Name, set.ID)
			if err != nil {
				return err
			}
			if newSlug != set.Slug {
				if err := slugs.RecordRedirect(tx, models.KindShowcaseSet, set.ID, set.Slug); err != nil {
					return err
				}
				set.Slug = newSlug
			}
			set.Name = req.Name
		}
		if req.Description != "" {
			set.Description = req.Description
		}
		if req.IsActive != nil {
			set.IsActive = *req.IsActive
		}
		return tx.Save(&set).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update showcase")
	}
	return c.JSON(http.StatusOK, set)
}

func (h *ShowcaseHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var set models.ShowcaseSet
	if err := h.DB.First(&set, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "showcase not found")
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&set).Association("Products").Clear(); err != nil {
			return err
		}
		if err := tx.Where("showcase_set_id = ?", set.ID).Delete(&models.ShowcasePlaceholder{}).Error; err != nil {
			return err
		}
		return tx.Delete(&set).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete showcase")
	}
	return c.NoContent(http.StatusNoContent)
}

// AttachProducts replaces or extends the set's direct product membership.
func (h *ShowcaseHandler) AttachProducts(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var set models.ShowcaseSet
	if err := h.DB.First(&set, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "showcase not found")
	}

	var req struct {
		ProductIDs []uint `json:"product_ids"`
		Replace    bool   `json:"replace"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var products []models.Product
	if len(req.ProductIDs) > 0 {
		if err := h.DB.Where("id IN ?", req.ProductIDs).Find(&products).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to load products")
		}
	}

	assoc := h.DB.Model(&set).Association("Products")
	if req.Replace {
		err = assoc.Replace(products)
	} else {
		err = assoc.Append(products)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update showcase")
	}
	return c.JSON(http.StatusOK, map[string]any{"attached": len(products)})
}

func (h *ShowcaseHandler) DetachProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var set models.ShowcaseSet
	if err := h.DB.First(&set, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "showcase not found")
	}
	var product models.Product
	if err := h.DB.First(&product, c.Param("productID")).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	if err := h.DB.Model(&set).Association("Products").Delete(&product); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update showcase")
	}
	return c.NoContent(http.StatusNoContent)
}

// CreatePlaceholder adds a placeholder slot to a with_placeholders set.
func (h *ShowcaseHandler) CreatePlaceholder(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var set models.ShowcaseSet
	if err := h.DB.First(&set, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "showcase not found")
	}
	if set.Type != models.ShowcaseWithPlaceholders {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "showcase does not use placeholders")
	}

	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		CTAText     string `json:"cta_text"`
		CTAURL      string `json:"cta_url"`
		ProductIDs  []uint `json:"product_ids"`
	}
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "title is required")
	}

	placeholder := models.ShowcasePlaceholder{
		ShowcaseSetID: set.ID,
		Title:         req.Title,
		Description:   req.Description,
		CTAText:       req.CTAText,
		CTAURL:        req.CTAURL,
	}
	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&placeholder).Error; err != nil {
			return err
		}
		if len(req.ProductIDs) > 0 {
			var products []models.Product
			if err := tx.Where("id IN ?", req.ProductIDs).Find(&products).Error; err != nil {
				return err
			}
			return tx.Model(&placeholder).Association("Products").Append(products)
		}
		return nil
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create placeholder")
	}
	return c.JSON(http.StatusCreated, placeholder)
}

func (h *ShowcaseHandler) DeletePlaceholder(c echo.Context) error {
	var placeholder models.ShowcasePlaceholder
	if err := h.DB.First(&placeholder, c.Param("placeholderID")).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "placeholder not found")
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&placeholder).Association("Products").Clear(); err != nil {
			return err
		}
		return tx.Delete(&placeholder).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to delete placeholder")
	}
	return c.NoContent(http.StatusNoContent)
}
