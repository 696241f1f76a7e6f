package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
)

type WishlistHandler struct {
	DB *gorm.DB
}

// wishlistIDFromRequest reads the anonymous wishlist id the client holds on to.
func wishlistIDFromRequest(c echo.Context) string {
	if v := c.Request().Header.Get("X-Wishlist-ID"); v != "" {
		return v
	}
	if cookie, err := c.Cookie("wishlistID"); err == nil {
		return cookie.Value
	}
	return ""
}

// resolveWishlist finds the caller's wishlist, creating one if needed. For an
// authenticated caller whose request also carries an anonymous wishlist id,
// the anonymous wishlist is merged into the user wishlist and deleted, so the
// same client never sees two wishlists after signing in.
func (h *WishlistHandler) resolveWishlist(c echo.Context, createMissing bool) (*models.Wishlist, error) {
	userID := auth.UserID(c)
	anonID := wishlistIDFromRequest(c)

	if userID != 0 {
		var wishlist models.Wishlist
		err := h.DB.Where("user_id = ?", userID).First(&wishlist).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			wishlist = models.Wishlist{UserID: &userID}
			if err := h.DB.Create(&wishlist).Error; err != nil {
				return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to create wishlist")
			}
		} else if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load wishlist")
		}

		if anonID != "" && anonID != wishlist.ID {
			if err := h.mergeAnonymousWishlist(anonID, &wishlist); err != nil {
				return nil, err
			}
		}
		return &wishlist, nil
	}

	if anonID != "" {
		var wishlist models.Wishlist
		err := h.DB.Where("id = ? AND user_id IS NULL", anonID).First(&wishlist).Error
		if err == nil {
			return &wishlist, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load wishlist")
		}
	}
	if !createMissing {
		return nil, echo.NewHTTPError(http.StatusNotFound, "wishlist not found")
	}
	wishlist := models.Wishlist{}
	if err := h.DB.Create(&wishlist).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to create wishlist")
	}
	return &wishlist, nil
}

// mergeAnonymousWishlist moves the anonymous wishlist's items over. A product
// already on the user's list stays as the user's item and the anonymous
// duplicate is dropped. The anonymous wishlist is deleted once drained.
func (h *WishlistHandler) mergeAnonymousWishlist(anonID string, into *models.Wishlist) error {
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var anon models.Wishlist
		err := tx.Preload("Items").Where("id = ? AND user_id IS NULL", anonID).First(&anon).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already merged or never existed
		}
		if err != nil {
			return err
		}

		for _, item := range anon.Items {
			var count int64
			err := tx.Model(&models.WishlistItem{}).
				Where("wishlist_id = ? AND product_id = ?", into.ID, item.ProductID).
				Count(&count).Error
			if err != nil {
				return err
			}
			if count > 0 {
				if err := tx.Delete(&item).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&models.WishlistItem{}).Where("id = ?", item.ID).
				Update("wishlist_id", into.ID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&anon).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to merge wishlist")
	}
	return nil
}

func (h *WishlistHandler) Get(c echo.Context) error {
	wishlist, err := h.resolveWishlist(c, true)
	if err != nil {
		return err
	}
	var items []models.WishlistItem
	if err := h.DB.Preload("Product").Where("wishlist_id = ?", wishlist.ID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load wishlist")
	}
	return c.JSON(http.StatusOK, map[string]any{
		"wishlist_id": wishlist.ID,
		"items":       items,
	})
}

func (h *WishlistHandler) Add(c echo.Context) error {
	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil || req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id is required")
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	wishlist, err := h.resolveWishlist(c, true)
	if err != nil {
		return err
	}

	var existing models.WishlistItem
	err = h.DB.Where("wishlist_id = ? AND product_id = ?", wishlist.ID, req.ProductID).
		First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "already in your wishlist")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add to wishlist")
	}

	item := models.WishlistItem{WishlistID: wishlist.ID, ProductID: req.ProductID}
	if err := h.DB.Create(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add to wishlist")
	}
	return c.JSON(http.StatusCreated, map[string]any{
		"wishlist_id": wishlist.ID,
		"item":        item,
	})
}

func (h *WishlistHandler) Remove(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	wishlist, err := h.resolveWishlist(c, false)
	if err != nil {
		return err
	}
	result := h.DB.Where("id = ? AND wishlist_id = ?", id, wishlist.ID).Delete(&models.WishlistItem{})
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove item")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// MoveToCart moves a wishlist entry into the user's cart, dropping it from the
// wishlist only when the product is still purchasable.
func (h *WishlistHandler) MoveToCart(c echo.Context) error {
	userID := auth.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "sign in to move items")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	wishlist, err := h.resolveWishlist(c, false)
	if err != nil {
		return err
	}

	var item models.WishlistItem
	if err := h.DB.Preload("Product").
		Where("id = ? AND wishlist_id = ?", id, wishlist.ID).First(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	if item.Product == nil || !item.Product.Open() || item.Product.Stock < 1 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "product is not available")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Where("user_id = ?", userID).
			FirstOrCreate(&cart, models.Cart{UserID: &userID}).Error; err != nil {
			return err
		}
		var line models.CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, item.ProductID).First(&line).Error
		switch {
		case err == nil:
			line.Quantity++
			if err := tx.Save(&line).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			line = models.CartItem{CartID: cart.ID, ProductID: item.ProductID, Quantity: 1}
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		default:
			return err
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to move item")
	}
	return c.NoContent(http.StatusNoContent)
}
