package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// Coupon 优惠券。percentage 时 DiscountValue 为百分比，flat 时为金额（分）。
type Coupon struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Code          string       `gorm:"size:32;uniqueIndex;not null" json:"code"`
	DiscountType  DiscountType `gorm:"size:16;not null" json:"discount_type"`
	DiscountValue int64        `gorm:"not null" json:"discount_value"`
	MinCartValue  int64        `gorm:"not null;default:0" json:"min_cart_value"`
	MaxUses       *int64       `json:"max_uses,omitempty"`
	CurrentUses   int64        `gorm:"not null;default:0" json:"current_uses"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
	IsActive      bool         `gorm:"not null" json:"is_active"`
}

func (Coupon) TableName() string { return "coupons" }

// NormalizeCode 统一优惠码大小写。
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
