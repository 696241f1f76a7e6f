package slugs

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"github.com/duadua/marketplace/internal/models"
)

// ErrMoved reports that the requested slug has been retired; the caller should
// answer with a permanent redirect to CurrentSlug.
type ErrMoved struct {
	RequestedSlug string
	CurrentSlug   string
}

func (e *ErrMoved) Error() string {
	return fmt.Sprintf("slug %q moved to %q", e.RequestedSlug, e.CurrentSlug)
}

// Generate derives a URL slug from name and uniquifies it against table by
// appending -1, -2, ... until no other row holds it. excludeID lets an update
// keep its own slug. Soft-deleted rows still count as taken because the
// underlying unique index sees them.
func Generate(tx *gorm.DB, table, name string, excludeID uint) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "item"
	}
	candidate := base
	for n := 1; ; n++ {
		var count int64
		q := tx.Table(table).Where("slug = ?", candidate)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check slug uniqueness: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// RecordRedirect appends the retired slug to the redirect log. Callers invoke
// it inside the same transaction that changes the entity's slug.
func RecordRedirect(tx *gorm.DB, kind string, entityID uint, oldSlug string) error {
	if oldSlug == "" {
		return nil
	}
	redirect := models.SlugRedirect{
		Slug:       oldSlug,
		EntityKind: kind,
		EntityID:   entityID,
	}
	if err := tx.Create(&redirect).Error; err != nil {
		return fmt.Errorf("failed to record slug redirect: %w", err)
	}
	return nil
}

// resolve finds an entity by numeric id first, then by current slug, then
// through the redirect log. A redirect hit loads the entity and wraps it in
// ErrMoved so the transport layer can issue a 301.
func resolve[T any](db *gorm.DB, kind, identifier string, slugOf func(*T) string) (*T, error) {
	var entity T
	if id, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		err := db.First(&entity, uint(id)).Error
		if err == nil {
			return &entity, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	err := db.Where("slug = ?", identifier).First(&entity).Error
	if err == nil {
		return &entity, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var redirect models.SlugRedirect
	err = db.Where("slug = ? AND entity_kind = ?", identifier, kind).
		Order("created_at DESC").
		First(&redirect).Error
	if err != nil {
		return nil, err
	}
	if err := db.First(&entity, redirect.EntityID).Error; err != nil {
		return nil, err
	}
	return nil, &ErrMoved{RequestedSlug: identifier, CurrentSlug: slugOf(&entity)}
}

func ResolveProduct(db *gorm.DB, identifier string) (*models.Product, error) {
	return resolve(db, models.KindProduct, identifier, func(p *models.Product) string { return p.Slug })
}

func ResolveCategory(db *gorm.DB, identifier string) (*models.Category, error) {
	return resolve(db, models.KindCategory, identifier, func(c *models.Category) string { return c.Slug })
}

func ResolveShowcaseSet(db *gorm.DB, identifier string) (*models.ShowcaseSet, error) {
	return resolve(db, models.KindShowcaseSet, identifier, func(s *models.ShowcaseSet) string { return s.Slug })
}
