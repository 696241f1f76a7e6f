package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/middleware/auth"
	"github.com/duadua/marketplace/internal/models"
	"github.com/duadua/marketplace/internal/mykafka"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// cartIDFromRequest reads the anonymous cart id the client holds on to.
func cartIDFromRequest(c echo.Context) string {
	if v := c.Request().Header.Get("X-Cart-ID"); v != "" {
		return v
	}
	if cookie, err := c.Cookie("cartID"); err == nil {
		return cookie.Value
	}
	return ""
}

// optionsEqual compares two option bags by sorted-key equality. Values are
// compared as their JSON string forms.
func optionsEqual(a, b datatypes.JSONMap) bool {
	if len(a) != len(b) {
		return false
	}
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		bv, ok := b[k]
		if !ok {
			return false
		}
		if fmt.Sprint(a[k]) != fmt.Sprint(bv) {
			return false
		}
	}
	return true
}

// resolveCart finds the caller's cart, creating one if needed. For an
// authenticated caller whose request also carries an anonymous cart id, the
// anonymous cart is merged into the user cart and deleted, so the same client
// never sees two carts after signing in.
func (h *CartHandler) resolveCart(c echo.Context, createMissing bool) (*models.Cart, error) {
	userID := auth.UserID(c)
	anonID := cartIDFromRequest(c)

	if userID != 0 {
		var cart models.Cart
		err := h.DB.Where("user_id = ?", userID).First(&cart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if !createMissing && anonID == "" {
				return nil, echo.NewHTTPError(http.StatusNotFound, "cart not found")
			}
			cart = models.Cart{UserID: &userID}
			if err := h.DB.Create(&cart).Error; err != nil {
				return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to create cart")
			}
		} else if err != nil {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load cart")
		}

		if anonID != "" && anonID != cart.ID {
			if err := h.mergeAnonymousCart(anonID, &cart); err != nil {
				return nil, err
			}
		}
		return &cart, nil
	}

	if anonID != "" {
		var cart models.Cart
		err := h.DB.Where("id = ? AND user_id IS NULL", anonID).First(&cart).Error
		if err == nil {
			return &cart, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load cart")
		}
	}
	if !createMissing {
		return nil, echo.NewHTTPError(http.StatusNotFound, "cart not found")
	}
	cart := models.Cart{}
	if err := h.DB.Create(&cart).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to create cart")
	}
	return &cart, nil
}

// mergeAnonymousCart folds the anonymous cart's lines into the user cart.
// Lines are merged by product id: when both carts hold the same product the
// quantities are summed onto the user's line regardless of its options bag,
// otherwise the line moves over as-is. The anonymous cart is deleted once
// drained.
func (h *CartHandler) mergeAnonymousCart(anonID string, into *models.Cart) error {
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var anon models.Cart
		err := tx.Preload("Items").Where("id = ? AND user_id IS NULL", anonID).First(&anon).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already merged or never existed
		}
		if err != nil {
			return err
		}

		for _, item := range anon.Items {
			var existing models.CartItem
			err := tx.Where("cart_id = ? AND product_id = ?", into.ID, item.ProductID).
				First(&existing).Error
			switch {
			case err == nil:
				existing.Quantity += item.Quantity
				if err := tx.Save(&existing).Error; err != nil {
					return err
				}
				if err := tx.Delete(&item).Error; err != nil {
					return err
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Model(&models.CartItem{}).Where("id = ?", item.ID).
					Update("cart_id", into.ID).Error; err != nil {
					return err
				}
			default:
				return err
			}
		}
		return tx.Delete(&anon).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to merge carts")
	}
	return nil
}

// GetCart returns the cart after silently dropping lines whose product is no
// longer purchasable.
func (h *CartHandler) GetCart(c echo.Context) error {
	cart, err := h.resolveCart(c, true)
	if err != nil {
		return err
	}

	var items []models.CartItem
	if err := h.DB.Preload("Product").Where("cart_id = ?", cart.ID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load cart")
	}

	kept := items[:0]
	var subtotal float64
	for _, item := range items {
		if item.Product == nil || !item.Product.Open() {
			h.DB.Delete(&models.CartItem{}, item.ID)
			continue
		}
		kept = append(kept, item)
		subtotal += item.Product.Price * float64(item.Quantity)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"cart_id":  cart.ID,
		"items":    kept,
		"subtotal": subtotal,
	})
}

func (h *CartHandler) AddItem(c echo.Context) error {
	var req struct {
		ProductID uint              `json:"product_id"`
		Quantity  int               `json:"quantity"`
		Options   datatypes.JSONMap `json:"options"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id is required")
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	if !product.Open() || product.Stock < 1 {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "product is not available")
	}

	cart, err := h.resolveCart(c, true)
	if err != nil {
		return err
	}

	// Same product with the same options bag folds into the existing line.
	var existing []models.CartItem
	if err := h.DB.Where("cart_id = ? AND product_id = ?", cart.ID, req.ProductID).
		Find(&existing).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load cart")
	}
	for i := range existing {
		if optionsEqual(existing[i].Options, req.Options) {
			existing[i].Quantity += req.Quantity
			if err := h.DB.Save(&existing[i]).Error; err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "failed to update cart")
			}
			return c.JSON(http.StatusOK, existing[i])
		}
	}

	item := models.CartItem{
		CartID:    cart.ID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Options:   req.Options,
	}
	if err := h.DB.Create(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add to cart")
	}

	publish(c, h.Producer, "cart_events", cart.ID, map[string]any{
		"type":      "cart_item_added",
		"cartID":    cart.ID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusCreated, item)
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.resolveCart(c, false)
	if err != nil {
		return err
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND cart_id = ?", id, cart.ID).First(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}

	if req.Quantity < 1 {
		if err := h.DB.Delete(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove item")
		}
		return c.NoContent(http.StatusNoContent)
	}

	item.Quantity = req.Quantity
	if err := h.DB.Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to update item")
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) DeleteItem(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cart, err := h.resolveCart(c, false)
	if err != nil {
		return err
	}
	result := h.DB.Where("id = ? AND cart_id = ?", id, cart.ID).Delete(&models.CartItem{})
	if result.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove item")
	}
	if result.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) Clear(c echo.Context) error {
	cart, err := h.resolveCart(c, false)
	if err != nil {
		return err
	}
	if err := h.DB.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to clear cart")
	}
	return c.NoContent(http.StatusNoContent)
}

// MoveToWishlist moves a cart line into the caller's wishlist. Wishlists
// belong to accounts, so this requires authentication.
func (h *CartHandler) MoveToWishlist(c echo.Context) error {
	userID := auth.UserID(c)
	if userID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "sign in to use the wishlist")
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	cart, err := h.resolveCart(c, false)
	if err != nil {
		return err
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND cart_id = ?", id, cart.ID).First(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "item not found")
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var wishlist models.Wishlist
		if err := tx.Where("user_id = ?", userID).
			FirstOrCreate(&wishlist, models.Wishlist{UserID: &userID}).Error; err != nil {
			return err
		}
		entry := models.WishlistItem{WishlistID: wishlist.ID, ProductID: item.ProductID}
		if err := tx.Where("wishlist_id = ? AND product_id = ?", wishlist.ID, item.ProductID).
			FirstOrCreate(&entry).Error; err != nil {
			return err
		}
		return tx.Delete(&item).Error
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to move item")
	}
	return c.NoContent(http.StatusNoContent)
}
