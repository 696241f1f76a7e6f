package handlers

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/duadua/marketplace/internal/models"
)

func TestCategoryProductAssignment(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	inCat := createProduct(t, db, vendor.ID, "Teapot", 10, 5)
	loose := createProduct(t, db, vendor.ID, "Saucer", 5, 5)
	category := models.Category{Name: "Kitchen", Slug: "kitchen"}
	require.NoError(t, db.Create(&category).Error)
	h := &CategoryHandler{DB: db}

	c, rec := newContext(t, e, http.MethodPost, "/admin/categories/1/products", map[string]any{
		"product_ids": []uint{inCat.ID},
	})
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.AddProducts(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Product
	require.NoError(t, db.First(&got, inCat.ID).Error)
	require.NotNil(t, got.CategoryID)
	require.Equal(t, category.ID, *got.CategoryID)

	// The assignment picker only offers products outside the category.
	c, rec = newContext(t, e, http.MethodGet, "/admin/categories/1/products/available", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, h.AvailableProducts(c))
	var listing struct {
		Data []models.Product `json:"data"`
	}
	decodeBody(t, rec, &listing)
	require.Len(t, listing.Data, 1)
	require.Equal(t, loose.ID, listing.Data[0].ID)

	c, _ = newContext(t, e, http.MethodDelete, "/admin/categories/1/products/1", nil)
	c.SetParamNames("id", "productID")
	c.SetParamValues("1", "1")
	require.NoError(t, h.RemoveProduct(c))

	require.NoError(t, db.First(&got, inCat.ID).Error)
	require.Nil(t, got.CategoryID)

	// Detaching again is a 404, the product is no longer in the category.
	c, _ = newContext(t, e, http.MethodDelete, "/admin/categories/1/products/1", nil)
	c.SetParamNames("id", "productID")
	c.SetParamValues("1", "1")
	require.Equal(t, http.StatusNotFound, httpErrorCode(t, h.RemoveProduct(c)))
}

func TestCategoryDeleteKeepsNonEmpty(t *testing.T) {
	db := newTestDB(t)
	e := echo.New()
	vendor := createUser(t, db, "vendor@shop.test", models.RoleVendor)
	category := models.Category{Name: "Kitchen", Slug: "kitchen"}
	require.NoError(t, db.Create(&category).Error)
	product := createProduct(t, db, vendor.ID, "Teapot", 10, 5)
	require.NoError(t, db.Model(product).Update("category_id", category.ID).Error)
	h := &CategoryHandler{DB: db}

	c, _ := newContext(t, e, http.MethodDelete, "/admin/categories/1", nil)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.Equal(t, http.StatusConflict, httpErrorCode(t, h.Delete(c)))
}
