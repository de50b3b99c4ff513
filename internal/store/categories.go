package store

import (
	"context"

	"storefront/internal/model"

	"gorm.io/gorm"
)

type Categories struct {
	db *gorm.DB
}

func NewCategories(db *gorm.DB) *Categories {
	return &Categories{db: db}
}

func (s *Categories) List(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	q := s.db.WithContext(ctx).Model(&model.Category{})
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var list []model.Category
	err := q.Order("name ASC").Limit(100).Find(&list).Error
	return list, err
}

func (s *Categories) FindByID(ctx context.Context, id uint) (*model.Category, error) {
	var c model.Category
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Categories) FindBySlug(ctx context.Context, slug string) (*model.Category, error) {
	var c model.Category
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Categories) Create(ctx context.Context, c *model.Category) error {
	return s.db.WithContext(ctx).Create(c).Error
}

// Update overwrites the editable fields, is_active included.
func (s *Categories) Update(ctx context.Context, id uint, c *model.Category) (*model.Category, error) {
	res := s.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).
		Select("name", "slug", "description", "image_url", "is_active").
		Updates(&model.Category{
			Name:        c.Name,
			Slug:        c.Slug,
			Description: c.Description,
			ImageURL:    c.ImageURL,
			IsActive:    c.IsActive,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

// Delete 软删除分类；已关联商品保留 category_id。
func (s *Categories) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Category{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
