package store

import (
	"context"

	"storefront/internal/model"

	"gorm.io/gorm"
)

type Coupons struct {
	db *gorm.DB
}

func NewCoupons(db *gorm.DB) *Coupons {
	return &Coupons{db: db}
}

// FindByCode 按规范化后的优惠码查找（不过滤 is_active，以便区分"未启用"与"不存在"）。
func (s *Coupons) FindByCode(ctx context.Context, code string) (*model.Coupon, error) {
	var c model.Coupon
	if err := s.db.WithContext(ctx).Where("code = ?", model.NormalizeCode(code)).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// IncrementUsage 条件自增：max_uses 为空或 current_uses < max_uses 时才 +1。
// 返回 false 表示使用次数已用尽。
func (s *Coupons) IncrementUsage(ctx context.Context, code string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("code = ? AND (max_uses IS NULL OR current_uses < max_uses)", model.NormalizeCode(code)).
		UpdateColumn("current_uses", gorm.Expr("current_uses + 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DecrementUsage undoes an IncrementUsage whose order was never persisted.
func (s *Coupons) DecrementUsage(ctx context.Context, code string) error {
	return s.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("code = ? AND current_uses > 0", model.NormalizeCode(code)).
		UpdateColumn("current_uses", gorm.Expr("current_uses - 1")).Error
}

func (s *Coupons) List(ctx context.Context) ([]model.Coupon, error) {
	var list []model.Coupon
	err := s.db.WithContext(ctx).Order("created_at DESC").Limit(500).Find(&list).Error
	return list, err
}

func (s *Coupons) FindByID(ctx context.Context, id uint) (*model.Coupon, error) {
	var c model.Coupon
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (s *Coupons) Create(ctx context.Context, c *model.Coupon) error {
	c.Code = model.NormalizeCode(c.Code)
	return s.db.WithContext(ctx).Create(c).Error
}

// Update overwrites the editable fields; current_uses is never touched here.
func (s *Coupons) Update(ctx context.Context, id uint, c *model.Coupon) (*model.Coupon, error) {
	res := s.db.WithContext(ctx).Model(&model.Coupon{}).Where("id = ?", id).
		Select("code", "discount_type", "discount_value", "min_cart_value", "max_uses", "expires_at", "is_active").
		Updates(&model.Coupon{
			Code:          model.NormalizeCode(c.Code),
			DiscountType:  c.DiscountType,
			DiscountValue: c.DiscountValue,
			MinCartValue:  c.MinCartValue,
			MaxUses:       c.MaxUses,
			ExpiresAt:     c.ExpiresAt,
			IsActive:      c.IsActive,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *Coupons) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Coupon{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
