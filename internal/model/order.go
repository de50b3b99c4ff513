package model

import (
	"time"

	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentRazorpay PaymentMethod = "razorpay"
	PaymentCOD      PaymentMethod = "cod"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentRazorpay || m == PaymentCOD
}

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCODPending PaymentStatus = "cod_pending"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// OrderItem 下单时的商品快照，单价来自服务端商品记录。
type OrderItem struct {
	ProductID   uint   `json:"product_id"`
	Name        string `json:"name"`
	Size        string `json:"size,omitempty"`
	Image       string `json:"image,omitempty"`
	Quantity    int64  `json:"quantity"`
	Price       int64  `json:"price"`
	SalePrice   *int64 `json:"sale_price,omitempty"`
	WeightGrams int64  `json:"weight_grams"`
}

// UnitPrice mirrors Product.UnitPrice on the snapshot.
func (i OrderItem) UnitPrice() int64 {
	if i.SalePrice != nil && *i.SalePrice > 0 && *i.SalePrice < i.Price {
		return *i.SalePrice
	}
	return i.Price
}

type ShippingAddress struct {
	FullName     string `json:"full_name" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone" binding:"required"`
	AddressLine1 string `json:"address_line1" binding:"required"`
	AddressLine2 string `json:"address_line2"`
	City         string `json:"city" binding:"required"`
	State        string `json:"state" binding:"required"`
	Pincode      string `json:"pincode" binding:"required"`
	Country      string `json:"country"`
}

// Order 订单。OrderNo 对外可见；金额单位：分。
type Order struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	OrderNo         string          `gorm:"size:32;uniqueIndex;not null" json:"order_no"`
	Items           []OrderItem     `gorm:"serializer:json;not null" json:"items"`
	ShippingAddress ShippingAddress `gorm:"serializer:json;not null" json:"shipping_address"`

	Subtotal       int64  `gorm:"not null" json:"subtotal"`
	CouponCode     string `gorm:"size:32" json:"coupon_code,omitempty"`
	CouponDiscount int64  `gorm:"not null;default:0" json:"coupon_discount"`
	// CouponCounted 保证每个订单最多计一次优惠券使用次数。
	CouponCounted bool  `gorm:"not null;default:false" json:"-"`
	ShippingCost  int64 `gorm:"not null;default:0" json:"shipping_cost"`
	CODFee        int64 `gorm:"not null;default:0" json:"cod_fee"`
	Total         int64 `gorm:"not null" json:"total"`

	PaymentMethod    PaymentMethod `gorm:"size:16;not null;index" json:"payment_method"`
	PaymentStatus    PaymentStatus `gorm:"size:16;not null;index" json:"payment_status"`
	OrderStatus      OrderStatus   `gorm:"size:16;not null;index" json:"order_status"`
	GatewayOrderID   string        `gorm:"size:64;index" json:"razorpay_order_id,omitempty"`
	GatewayPaymentID string        `gorm:"size:64" json:"razorpay_payment_id,omitempty"`
	ShippingCarrier  string        `gorm:"size:64" json:"shipping_carrier,omitempty"`
	CourierName      string        `gorm:"size:64" json:"courier_name,omitempty"`
	TrackingNumber   string        `gorm:"size:64" json:"tracking_number,omitempty"`
	TrackingURL      string        `gorm:"size:255" json:"tracking_url,omitempty"`
}

func (Order) TableName() string { return "orders" }

// ComputedTotal recomputes the total from the stored monetary fields.
func (o Order) ComputedTotal() int64 {
	return o.Subtotal - o.CouponDiscount + o.ShippingCost + o.CODFee
}
