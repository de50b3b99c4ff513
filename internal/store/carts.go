package store

import (
	"context"
	"errors"

	"storefront/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Carts struct {
	db *gorm.DB
}

func NewCarts(db *gorm.DB) *Carts {
	return &Carts{db: db}
}

// Get 返回会话购物车；不存在时返回空购物车（未落库）。
func (s *Carts) Get(ctx context.Context, sessionID string) (*model.Cart, error) {
	var c model.Cart
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.Cart{SessionID: sessionID, Items: []model.CartItem{}}, nil
	}
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []model.CartItem{}
	}
	return &c, nil
}

// Save upserts the cart by session id.
func (s *Carts) Save(ctx context.Context, c *model.Cart) error {
	if c.ID != 0 {
		return s.db.WithContext(ctx).Save(c).Error
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"items", "coupon_code", "coupon_discount", "updated_at"}),
	}).Create(c).Error
}

func (s *Carts) Delete(ctx context.Context, sessionID string) error {
	return s.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&model.Cart{}).Error
}
