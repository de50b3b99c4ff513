package coupon

import (
	"errors"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestEvaluate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		coupon   *model.Coupon
		subtotal int64
		want     int64
		reason   Reason
	}{
		{
			name:   "missing",
			reason: ReasonNotFound,
		},
		{
			name:     "percentage",
			coupon:   &model.Coupon{Code: "TEN", DiscountType: model.DiscountPercentage, DiscountValue: 10, IsActive: true},
			subtotal: 2999,
			want:     299,
		},
		{
			name:     "flat capped at subtotal",
			coupon:   &model.Coupon{Code: "FLAT500", DiscountType: model.DiscountFlat, DiscountValue: 50000, IsActive: true},
			subtotal: 20000,
			want:     20000,
		},
		{
			name:     "below minimum",
			coupon:   &model.Coupon{Code: "FLAT500", DiscountType: model.DiscountFlat, DiscountValue: 50000, MinCartValue: 300000, IsActive: true},
			subtotal: 200000,
			reason:   ReasonBelowMinimum,
		},
		{
			name:     "inactive",
			coupon:   &model.Coupon{Code: "OFF", DiscountType: model.DiscountFlat, DiscountValue: 100},
			subtotal: 1000,
			reason:   ReasonInactive,
		},
		{
			name:     "expired",
			coupon:   &model.Coupon{Code: "OLD", DiscountType: model.DiscountFlat, DiscountValue: 100, IsActive: true, ExpiresAt: ptr(now.Add(-time.Minute))},
			subtotal: 1000,
			reason:   ReasonExpired,
		},
		{
			name:     "usage exhausted",
			coupon:   &model.Coupon{Code: "ONCE", DiscountType: model.DiscountFlat, DiscountValue: 100, IsActive: true, MaxUses: ptr(int64(1)), CurrentUses: 1},
			subtotal: 1000,
			reason:   ReasonUsageExhausted,
		},
		{
			name:     "future expiry is fine",
			coupon:   &model.Coupon{Code: "NEW", DiscountType: model.DiscountFlat, DiscountValue: 100, IsActive: true, ExpiresAt: ptr(now.Add(time.Hour))},
			subtotal: 1000,
			want:     100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.coupon, "code", tt.subtotal, now)
			if tt.reason != "" {
				var inv *InvalidError
				require.True(t, errors.As(err, &inv), "want InvalidError, got %v", err)
				assert.Equal(t, tt.reason, inv.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBelowMinimumMessage(t *testing.T) {
	err := &InvalidError{Reason: ReasonBelowMinimum, Min: 300050}
	assert.Equal(t, "minimum cart value of 3000.50 required", err.Error())
}

func TestValidateDefinition(t *testing.T) {
	assert.NoError(t, ValidateDefinition(&model.Coupon{Code: "a", DiscountType: model.DiscountFlat, DiscountValue: 1}))
	assert.Error(t, ValidateDefinition(&model.Coupon{Code: " ", DiscountType: model.DiscountFlat, DiscountValue: 1}))
	assert.Error(t, ValidateDefinition(&model.Coupon{Code: "a", DiscountType: model.DiscountPercentage, DiscountValue: 101}))
	assert.Error(t, ValidateDefinition(&model.Coupon{Code: "a", DiscountType: "bogus", DiscountValue: 1}))
	assert.Error(t, ValidateDefinition(&model.Coupon{Code: "a", DiscountType: model.DiscountFlat, DiscountValue: 1, MaxUses: ptr(int64(0))}))
}
