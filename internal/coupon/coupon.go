// Package coupon validates coupons against a cart value and computes the
// discount. The same rules apply to the cart, the validate endpoint and
// checkout.
package coupon

import (
	"fmt"
	"time"

	"storefront/internal/model"
)

// Reason is the machine-readable sub-kind of an invalid coupon.
type Reason string

const (
	ReasonNotFound       Reason = "not_found"
	ReasonInactive       Reason = "inactive"
	ReasonExpired        Reason = "expired"
	ReasonBelowMinimum   Reason = "below_minimum"
	ReasonUsageExhausted Reason = "usage_exhausted"
)

// InvalidError explains why a coupon cannot be applied.
type InvalidError struct {
	Code   string
	Reason Reason
	Min    int64
}

func (e *InvalidError) Error() string {
	switch e.Reason {
	case ReasonNotFound:
		return "invalid coupon code"
	case ReasonInactive:
		return "coupon is not active"
	case ReasonExpired:
		return "coupon has expired"
	case ReasonBelowMinimum:
		return fmt.Sprintf("minimum cart value of %d.%02d required", e.Min/100, e.Min%100)
	case ReasonUsageExhausted:
		return "coupon usage limit reached"
	}
	return "invalid coupon"
}

// Invalid builds an InvalidError for code.
func Invalid(code string, reason Reason) *InvalidError {
	return &InvalidError{Code: code, Reason: reason}
}

// Evaluate 校验优惠券并计算折扣。c 为 nil 表示优惠码不存在。
// 顺序：启用 → 过期 → 使用次数 → 最低消费。
func Evaluate(c *model.Coupon, code string, subtotal int64, now time.Time) (int64, error) {
	code = model.NormalizeCode(code)
	if c == nil {
		return 0, Invalid(code, ReasonNotFound)
	}
	if !c.IsActive {
		return 0, Invalid(code, ReasonInactive)
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return 0, Invalid(code, ReasonExpired)
	}
	if c.MaxUses != nil && c.CurrentUses >= *c.MaxUses {
		return 0, Invalid(code, ReasonUsageExhausted)
	}
	if subtotal < c.MinCartValue {
		return 0, &InvalidError{Code: code, Reason: ReasonBelowMinimum, Min: c.MinCartValue}
	}
	return Discount(c, subtotal), nil
}

// Discount computes the discount without validation.
// percentage: subtotal × value / 100 (floor); flat: min(value, subtotal).
func Discount(c *model.Coupon, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	switch c.DiscountType {
	case model.DiscountPercentage:
		pct := c.DiscountValue
		if pct > 100 {
			pct = 100
		}
		if pct < 0 {
			pct = 0
		}
		return subtotal * pct / 100
	default:
		if c.DiscountValue < 0 {
			return 0
		}
		return min(c.DiscountValue, subtotal)
	}
}

// ValidateDefinition checks an admin-supplied coupon before it is stored.
func ValidateDefinition(c *model.Coupon) error {
	if model.NormalizeCode(c.Code) == "" {
		return fmt.Errorf("code is required")
	}
	switch c.DiscountType {
	case model.DiscountPercentage:
		if c.DiscountValue <= 0 || c.DiscountValue > 100 {
			return fmt.Errorf("percentage discount must be in (0, 100]")
		}
	case model.DiscountFlat:
		if c.DiscountValue <= 0 {
			return fmt.Errorf("flat discount must be > 0")
		}
	default:
		return fmt.Errorf("discount_type must be percentage or flat")
	}
	if c.MinCartValue < 0 {
		return fmt.Errorf("min_cart_value must be >= 0")
	}
	if c.MaxUses != nil && *c.MaxUses <= 0 {
		return fmt.Errorf("max_uses must be > 0 when set")
	}
	return nil
}
