package store

import (
	"context"
	"strings"

	"storefront/internal/model"

	"gorm.io/gorm"
)

type Products struct {
	db *gorm.DB
}

func NewProducts(db *gorm.DB) *Products {
	return &Products{db: db}
}

func (s *Products) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (s *Products) FindBySlug(ctx context.Context, slug string) (*model.Product, error) {
	var p model.Product
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// DecrementStock 原子扣减：仅当 stock >= qty 时扣减，返回是否扣减成功。
func (s *Products) DecrementStock(ctx context.Context, id uint, qty int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementStock 回补库存。幂等性由调用方的状态迁移保证。
func (s *Products) IncrementStock(ctx context.Context, id uint, qty int64) error {
	return s.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("id = ?", id).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty)).Error
}

// ProductFilter mirrors the catalog query parameters.
type ProductFilter struct {
	ActiveOnly bool
	Brand      string
	CategoryID *uint
	Search     string
	Featured   *bool
	OnSale     *bool
	MinPrice   *int64
	MaxPrice   *int64
	SortBy     string
	Desc       bool
	Skip       int
	Limit      int
}

var sortableProductColumns = map[string]string{
	"created_at": "created_at",
	"price":      "price",
	"name":       "name",
	"stock":      "stock",
}

func (s *Products) List(ctx context.Context, f ProductFilter) ([]model.Product, int64, error) {
	q := s.db.WithContext(ctx).Model(&model.Product{})
	if f.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	if f.Brand != "" {
		q = q.Where("brand = ?", f.Brand)
	}
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.Featured != nil {
		q = q.Where("is_featured = ?", *f.Featured)
	}
	if f.OnSale != nil {
		q = q.Where("is_on_sale = ?", *f.OnSale)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(brand) LIKE ?)", like, like, like)
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	col, ok := sortableProductColumns[f.SortBy]
	if !ok {
		col = "created_at"
	}
	dir := " ASC"
	if f.Desc {
		dir = " DESC"
	}
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var list []model.Product
	err := q.Order(col + dir).Offset(f.Skip).Limit(limit).Find(&list).Error
	return list, total, err
}

func (s *Products) Brands(ctx context.Context) ([]string, error) {
	var brands []string
	err := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("is_active = ? AND brand <> ''", true).
		Distinct().Order("brand").Pluck("brand", &brands).Error
	return brands, err
}

func (s *Products) Create(ctx context.Context, p *model.Product) error {
	return s.db.WithContext(ctx).Create(p).Error
}

// Update applies a partial update; an empty map is a no-op.
func (s *Products) Update(ctx context.Context, id uint, fields map[string]any) (*model.Product, error) {
	if len(fields) > 0 {
		res := s.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.FindByID(ctx, id)
}

func (s *Products) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Product{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Products) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Product{}).Where("is_active = ?", true).Count(&n).Error
	return n, err
}

func (s *Products) CountLowStock(ctx context.Context, below int64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("is_active = ? AND stock < ?", true, below).Count(&n).Error
	return n, err
}
