package handlers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
)

func TestAddItemFoldsSameOptions(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	product := createProduct(t, db, vendor.ID, "Shirt", 25, 10)
	h := &CartHandler{DB: db}

	body := map[string]any{
		"product_id": product.ID,
		"quantity":   1,
		"options":    map[string]any{"size": "M", "color": "blue"},
	}
	c, rec := newContext(t, e, http.MethodPost, "/cart/items", body)
	require.NoError(t, h.AddItem(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.CartItem
	decodeBody(t, rec, &created)

	// Same options, different key iteration order: folds into the line.
	body["options"] = map[string]any{"color": "blue", "size": "M"}
	body["quantity"] = 2
	c2, rec2 := newContext(t, e, http.MethodPost, "/cart/items", body)
	c2.Request().Header.Set("X-Cart-ID", created.CartID)
	require.NoError(t, h.AddItem(c2))
	require.Equal(t, http.StatusOK, rec2.Code)

	var items []models.CartItem
	require.NoError(t, db.Where("cart_id = ?", created.CartID).Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, 3, items[0].Quantity)

	// Different options: a separate line.
	body["options"] = map[string]any{"size": "L", "color": "blue"}
	c3, rec3 := newContext(t, e, http.MethodPost, "/cart/items", body)
	c3.Request().Header.Set("X-Cart-ID", created.CartID)
	require.NoError(t, h.AddItem(c3))
	require.Equal(t, http.StatusCreated, rec3.Code)

	require.NoError(t, db.Where("cart_id = ?", created.CartID).Find(&items).Error)
	require.Len(t, items, 2)
}

func TestMergeAnonymousCartOnSignIn(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	customer := createUser(t, db, "customer@shop.test", models.RoleCustomer)
	shared := createProduct(t, db, vendor.ID, "Shared", 10, 50)
	anonOnly := createProduct(t, db, vendor.ID, "AnonOnly", 5, 50)
	h := &CartHandler{DB: db}

	userCart := models.Cart{UserID: &customer.ID}
	require.NoError(t, db.Create(&userCart).Error)
	require.NoError(t, db.Create(&models.CartItem{
		CartID: userCart.ID, ProductID: shared.ID, Quantity: 2,
		Options: datatypes.JSONMap{"size": "M"},
	}).Error)

	anonCart := models.Cart{}
	require.NoError(t, db.Create(&anonCart).Error)
	require.NoError(t, db.Create(&models.CartItem{CartID: anonCart.ID, ProductID: shared.ID, Quantity: 1}).Error)
	require.NoError(t, db.Create(&models.CartItem{CartID: anonCart.ID, ProductID: anonOnly.ID, Quantity: 4}).Error)

	c, rec := newContext(t, e, http.MethodGet, "/cart", nil)
	c.Request().Header.Set("X-Cart-ID", anonCart.ID)
	asUser(c, customer.ID, models.RoleCustomer)
	require.NoError(t, h.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	// Shared product quantities summed onto the user's line, even though the
	// anonymous line had no options.
	var sharedLine models.CartItem
	require.NoError(t, db.Where("cart_id = ? AND product_id = ?", userCart.ID, shared.ID).First(&sharedLine).Error)
	require.Equal(t, 3, sharedLine.Quantity)

	var movedLine models.CartItem
	require.NoError(t, db.Where("cart_id = ? AND product_id = ?", userCart.ID, anonOnly.ID).First(&movedLine).Error)
	require.Equal(t, 4, movedLine.Quantity)

	// The anonymous cart is gone.
	err := db.First(&models.Cart{}, "id = ?", anonCart.ID).Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	// Merging again is a no-op.
	c2, _ := newContext(t, e, http.MethodGet, "/cart", nil)
	c2.Request().Header.Set("X-Cart-ID", anonCart.ID)
	asUser(c2, customer.ID, models.RoleCustomer)
	require.NoError(t, h.GetCart(c2))
	require.NoError(t, db.Where("cart_id = ? AND product_id = ?", userCart.ID, shared.ID).First(&sharedLine).Error)
	require.Equal(t, 3, sharedLine.Quantity)
}

func TestGetCartDropsClosedProducts(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	open := createProduct(t, db, vendor.ID, "Open", 10, 5)
	closed := createProduct(t, db, vendor.ID, "Closed", 10, 5)
	require.NoError(t, db.Model(closed).Update("approval_status", models.ApprovalPending).Error)
	h := &CartHandler{DB: db}

	cart := models.Cart{}
	require.NoError(t, db.Create(&cart).Error)
	require.NoError(t, db.Create(&models.CartItem{CartID: cart.ID, ProductID: open.ID, Quantity: 1}).Error)
	require.NoError(t, db.Create(&models.CartItem{CartID: cart.ID, ProductID: closed.ID, Quantity: 1}).Error)

	c, rec := newContext(t, e, http.MethodGet, "/cart", nil)
	c.Request().Header.Set("X-Cart-ID", cart.ID)
	require.NoError(t, h.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var remaining []models.CartItem
	require.NoError(t, db.Where("cart_id = ?", cart.ID).Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, open.ID, remaining[0].ProductID)
}

func TestAddItemRejectsClosedProduct(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	product := createProduct(t, db, vendor.ID, "Hidden", 10, 5)
	require.NoError(t, db.Model(product).Update("status", models.ProductUnavailable).Error)
	h := &CartHandler{DB: db}

	c, _ := newContext(t, e, http.MethodPost, "/cart/items", map[string]any{"product_id": product.ID})
	err := h.AddItem(c)
	require.Equal(t, http.StatusUnprocessableEntity, httpErrorCode(t, err))
}
