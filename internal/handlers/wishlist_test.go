package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
)

func TestWishlistAddRejectsDuplicate(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	customer := createUser(t, db, "customer@shop.test", models.RoleCustomer)
	product := createProduct(t, db, vendor.ID, "Lamp", 20, 3)
	h := &WishlistHandler{DB: db}

	c, rec := newContext(t, e, http.MethodPost, "/wishlist", map[string]any{"product_id": product.ID})
	asUser(c, customer.ID, models.RoleCustomer)
	require.NoError(t, h.Add(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	c, _ = newContext(t, e, http.MethodPost, "/wishlist", map[string]any{"product_id": product.ID})
	asUser(c, customer.ID, models.RoleCustomer)
	require.Equal(t, http.StatusConflict, httpErrorCode(t, h.Add(c)))

	var count int64
	db.Model(&models.WishlistItem{}).Count(&count)
	require.Equal(t, int64(1), count)
}

func TestAnonymousWishlistAndMergeOnSignIn(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	customer := createUser(t, db, "customer@shop.test", models.RoleCustomer)
	lamp := createProduct(t, db, vendor.ID, "Lamp", 20, 3)
	vase := createProduct(t, db, vendor.ID, "Vase", 15, 3)
	h := &WishlistHandler{DB: db}

	// An anonymous client builds a wishlist and keeps its id.
	c, rec := newContext(t, e, http.MethodPost, "/wishlist", map[string]any{"product_id": lamp.ID})
	require.NoError(t, h.Add(c))
	var created struct {
		WishlistID string `json:"wishlist_id"`
	}
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.WishlistID)

	c, _ = newContext(t, e, http.MethodPost, "/wishlist", map[string]any{"product_id": vase.ID})
	c.Request().Header.Set("X-Wishlist-ID", created.WishlistID)
	require.NoError(t, h.Add(c))

	// The signed-in user already wants the lamp.
	userWishlist := models.Wishlist{UserID: &customer.ID}
	require.NoError(t, db.Create(&userWishlist).Error)
	require.NoError(t, db.Create(&models.WishlistItem{WishlistID: userWishlist.ID, ProductID: lamp.ID}).Error)

	// Signing in while still presenting the anonymous id merges the lists,
	// dropping the duplicate lamp.
	c, rec = newContext(t, e, http.MethodGet, "/wishlist", nil)
	c.Request().Header.Set("X-Wishlist-ID", created.WishlistID)
	asUser(c, customer.ID, models.RoleCustomer)
	require.NoError(t, h.Get(c))

	var listing struct {
		WishlistID string                `json:"wishlist_id"`
		Items      []models.WishlistItem `json:"items"`
	}
	decodeBody(t, rec, &listing)
	require.Equal(t, userWishlist.ID, listing.WishlistID)
	require.Len(t, listing.Items, 2)

	// The anonymous wishlist is gone; re-presenting its id is a no-op.
	err := db.Where("id = ?", created.WishlistID).First(&models.Wishlist{}).Error
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	c, _ = newContext(t, e, http.MethodGet, "/wishlist", nil)
	c.Request().Header.Set("X-Wishlist-ID", created.WishlistID)
	asUser(c, customer.ID, models.RoleCustomer)
	require.NoError(t, h.Get(c))
	var total int64
	db.Model(&models.WishlistItem{}).Count(&total)
	require.Equal(t, int64(2), total)
}

func TestMoveBetweenCartAndWishlist(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	customer := createUser(t, db, "customer@shop.test", models.RoleCustomer)
	product := createProduct(t, db, vendor.ID, "Lamp", 20, 3)
	cartH := &CartHandler{DB: db}
	wishH := &WishlistHandler{DB: db}

	// Add to cart, move to wishlist.
	c, rec := newContext(t, e, http.MethodPost, "/cart/items", map[string]any{"product_id": product.ID, "quantity": 2})
	asUser(c, customer.ID, models.RoleCustomer)
	require.NoError(t, cartH.AddItem(c))
	var line models.CartItem
	decodeBody(t, rec, &line)

	c2, _ := newContext(t, e, http.MethodPost, "/cart/items/1/wishlist", nil)
	c2.SetParamNames("id")
	c2.SetParamValues("1")
	asUser(c2, customer.ID, models.RoleCustomer)
	require.NoError(t, cartH.MoveToWishlist(c2))

	var cartCount, wishCount int64
	db.Model(&models.CartItem{}).Count(&cartCount)
	db.Model(&models.WishlistItem{}).Count(&wishCount)
	require.Zero(t, cartCount)
	require.Equal(t, int64(1), wishCount)

	// And back again.
	var entry models.WishlistItem
	require.NoError(t, db.First(&entry).Error)
	c3, _ := newContext(t, e, http.MethodPost, "/wishlist/1/cart", nil)
	c3.SetParamNames("id")
	c3.SetParamValues("1")
	asUser(c3, customer.ID, models.RoleCustomer)
	require.NoError(t, wishH.MoveToCart(c3))

	db.Model(&models.CartItem{}).Count(&cartCount)
	db.Model(&models.WishlistItem{}).Count(&wishCount)
	require.Equal(t, int64(1), cartCount)
	require.Zero(t, wishCount)
}
