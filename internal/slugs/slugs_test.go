package slugs

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Category{}, &models.SlugRedirect{}, &models.User{}))
	return db
}

func createProduct(t *testing.T, db *gorm.DB, name, slug string) *models.Product {
	t.Helper()
	p := models.Product{Name: name, Slug: slug, Price: 1, UserID: 1}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func TestGenerateNormalizes(t *testing.T) {
	db := newTestDB(t)
	got, err := Generate(db, "products", "Héllo,  World!", 0)
	require.NoError(t, err)
	require.Equal(t, "hello-world", got)
}

func TestGenerateUniquifies(t *testing.T) {
	db := newTestDB(t)
	createProduct(t, db, "Rug", "woven-rug")

	got, err := Generate(db, "products", "Woven Rug", 0)
	require.NoError(t, err)
	require.Equal(t, "woven-rug-1", got)

	createProduct(t, db, "Rug", "woven-rug-1")
	got, err = Generate(db, "products", "Woven Rug", 0)
	require.NoError(t, err)
	require.Equal(t, "woven-rug-2", got)
}

func TestGenerateKeepsOwnSlugOnUpdate(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db, "Rug", "woven-rug")

	got, err := Generate(db, "products", "Woven Rug", p.ID)
	require.NoError(t, err)
	require.Equal(t, "woven-rug", got)
}

func TestResolveByIDSlugAndRedirect(t *testing.T) {
	db := newTestDB(t)
	p := createProduct(t, db, "Rug", "new-rug")
	require.NoError(t, RecordRedirect(db, models.KindProduct, p.ID, "old-rug"))

	byID, err := ResolveProduct(db, fmt.Sprint(p.ID))
	require.NoError(t, err)
	require.Equal(t, p.ID, byID.ID)

	bySlug, err := ResolveProduct(db, "new-rug")
	require.NoError(t, err)
	require.Equal(t, p.ID, bySlug.ID)

	_, err = ResolveProduct(db, "old-rug")
	var moved *ErrMoved
	require.ErrorAs(t, err, &moved)
	require.Equal(t, "new-rug", moved.CurrentSlug)
	require.Equal(t, "old-rug", moved.RequestedSlug)

	_, err = ResolveProduct(db, "never-existed")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// Redirects are scoped by entity kind: a retired category slug must not
// resolve as a product.
func TestResolveRespectsEntityKind(t *testing.T) {
	db := newTestDB(t)
	category := models.Category{Name: "Rugs", Slug: "rugs-now"}
	require.NoError(t, db.Create(&category).Error)
	require.NoError(t, RecordRedirect(db, models.KindCategory, category.ID, "rugs-then"))

	_, err := ResolveProduct(db, "rugs-then")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	resolved, err := ResolveCategory(db, "rugs-now")
	require.NoError(t, err)
	require.Equal(t, category.ID, resolved.ID)

	_, err = ResolveCategory(db, "rugs-then")
	var moved *ErrMoved
	require.ErrorAs(t, err, &moved)
	require.Equal(t, "rugs-now", moved.CurrentSlug)
}
