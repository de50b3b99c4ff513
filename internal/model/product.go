package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product 商品：价格、可选折扣价、库存。金额单位：分（paise）。
type Product struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string   `gorm:"size:128;not null" json:"name"`
	Slug        string   `gorm:"size:160;uniqueIndex" json:"slug"`
	Description string   `gorm:"type:text" json:"description"`
	Brand       string   `gorm:"size:64;index" json:"brand"`
	CategoryID  *uint    `gorm:"index" json:"category_id,omitempty"`
	Images      []string `gorm:"serializer:json" json:"images"`
	Sizes       []string `gorm:"serializer:json" json:"sizes"`

	Price     int64  `gorm:"not null" json:"price"`
	SalePrice *int64 `json:"sale_price,omitempty"`
	// Stock is only mutated through conditional updates; see store.Products.
	Stock       int64 `gorm:"not null;default:0;check:stock >= 0" json:"stock"`
	WeightGrams int64 `gorm:"not null;default:500" json:"weight_grams"`

	IsActive   bool `gorm:"not null;index" json:"is_active"`
	IsFeatured bool `gorm:"not null;default:false" json:"is_featured"`
	IsOnSale   bool `gorm:"not null;default:false" json:"is_on_sale"`
}

func (Product) TableName() string { return "products" }

// UnitPrice 返回实际成交单价：折扣价有效时取折扣价。
func (p Product) UnitPrice() int64 {
	if p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price {
		return *p.SalePrice
	}
	return p.Price
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 生成 URL 友好的 slug，如 "Bridal Wear" → "bridal-wear"。
func Slugify(name string) string {
	return strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// BeforeCreate 为未指定 slug 的商品生成唯一 slug。
func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.Slug == "" {
		p.Slug = Slugify(p.Name) + "-" + uuid.NewString()[:6]
	}
	return nil
}

// Category 商品分类；停用后不在前台列表中展示。
type Category struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Name        string `gorm:"size:128;not null" json:"name"`
	Slug        string `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	Description string `gorm:"type:text" json:"description"`
	ImageURL    string `gorm:"size:255" json:"image_url"`
	IsActive    bool   `gorm:"not null;index" json:"is_active"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return nil
}
