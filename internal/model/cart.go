package model

import "time"

type CartItem struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	SalePrice *int64 `json:"sale_price,omitempty"`
	Quantity  int64  `json:"quantity"`
	Size      string `json:"size"`
	Image     string `json:"image"`
}

// Cart 购物车，按会话 ID 存储；不占用库存。
type Cart struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SessionID      string     `gorm:"size:64;uniqueIndex;not null" json:"session_id"`
	Items          []CartItem `gorm:"serializer:json" json:"items"`
	CouponCode     string     `gorm:"size:32" json:"coupon_code,omitempty"`
	CouponDiscount int64      `gorm:"not null;default:0" json:"coupon_discount"`
}

func (Cart) TableName() string { return "carts" }

func (c Cart) Subtotal() int64 {
	var total int64
	for _, it := range c.Items {
		unit := it.Price
		if it.SalePrice != nil && *it.SalePrice > 0 && *it.SalePrice < it.Price {
			unit = *it.SalePrice
		}
		total += unit * it.Quantity
	}
	return total
}
