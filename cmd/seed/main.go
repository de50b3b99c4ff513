package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"storefront/internal/coupon"
	"storefront/internal/model"
	"storefront/internal/store"

	"golang.org/x/crypto/bcrypt"
)

func ptr[T any](v T) *T { return &v }

var categories = []model.Category{
	{Name: "Lifestyle", Slug: "lifestyle", Description: "Everyday classics"},
	{Name: "Basketball", Slug: "basketball", Description: "Court-born silhouettes"},
}

// 商品 slug → 分类 slug
var productCategory = map[string]string{
	"air-jordan-1-retro-high-og": "basketball",
	"air-max-90":                 "lifestyle",
	"samba-og":                   "lifestyle",
	"gazelle-indoor":             "lifestyle",
	"550-white-green":            "basketball",
}

var products = []model.Product{
	{Name: "Air Jordan 1 Retro High OG", Slug: "air-jordan-1-retro-high-og", Brand: "Nike", Price: 1699500, Stock: 12, Sizes: []string{"7", "8", "9", "10"}, IsFeatured: true},
	{Name: "Air Max 90", Slug: "air-max-90", Brand: "Nike", Price: 1299500, SalePrice: ptr[int64](999500), Stock: 20, Sizes: []string{"6", "7", "8", "9"}, IsOnSale: true},
	{Name: "Samba OG", Slug: "samba-og", Brand: "Adidas", Price: 1099900, Stock: 15, Sizes: []string{"7", "8", "9"}, IsFeatured: true},
	{Name: "Gazelle Indoor", Slug: "gazelle-indoor", Brand: "Adidas", Price: 999900, Stock: 3, Sizes: []string{"8", "9"}},
	{Name: "550 White Green", Slug: "550-white-green", Brand: "New Balance", Price: 1199900, SalePrice: ptr[int64](899900), Stock: 8, Sizes: []string{"8", "9", "10", "11"}, IsOnSale: true},
}

var coupons = []model.Coupon{
	{Code: "WELCOME10", DiscountType: model.DiscountPercentage, DiscountValue: 10},
	{Code: "FLAT500", DiscountType: model.DiscountFlat, DiscountValue: 50000, MinCartValue: 300000},
	{Code: "FIRST50", DiscountType: model.DiscountFlat, DiscountValue: 5000, MaxUses: ptr[int64](50)},
}

// seed 初始化管理员、分类、示例商品与优惠券；已存在的记录跳过，可重复执行。
func main() {
	dbPath := flag.String("db", "storefront.db", "sqlite path")
	email := flag.String("admin-email", "admin@example.com", "admin email")
	password := flag.String("admin-password", "", "admin password (or ADMIN_PASSWORD)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if *password == "" {
		*password = os.Getenv("ADMIN_PASSWORD")
	}
	if len(*password) < 8 {
		logger.Error("admin password must be at least 8 characters")
		os.Exit(1)
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		logger.Error("open db", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()

	admins := store.NewAdmins(db)
	if _, err := admins.FindByEmail(ctx, *email); errors.Is(err, store.ErrNotFound) {
		hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("hash password", "err", err)
			os.Exit(1)
		}
		if err := admins.Create(ctx, &model.AdminUser{Email: *email, Name: "Admin", PasswordHash: string(hash)}); err != nil {
			logger.Error("create admin", "err", err)
			os.Exit(1)
		}
		logger.Info("admin created", "email", *email)
	}

	cats := store.NewCategories(db)
	categoryIDs := map[string]uint{}
	for i := range categories {
		cat := categories[i]
		if existing, err := cats.FindBySlug(ctx, cat.Slug); err == nil {
			categoryIDs[cat.Slug] = existing.ID
			continue
		}
		cat.IsActive = true
		if err := cats.Create(ctx, &cat); err != nil {
			logger.Error("create category", "slug", cat.Slug, "err", err)
			os.Exit(1)
		}
		categoryIDs[cat.Slug] = cat.ID
		logger.Info("category created", "id", cat.ID, "slug", cat.Slug)
	}

	ps := store.NewProducts(db)
	for i := range products {
		p := products[i]
		if _, err := ps.FindBySlug(ctx, p.Slug); err == nil {
			continue
		}
		if id, ok := categoryIDs[productCategory[p.Slug]]; ok {
			p.CategoryID = &id
		}
		p.IsActive = true
		p.WeightGrams = 800
		if err := ps.Create(ctx, &p); err != nil {
			logger.Error("create product", "slug", p.Slug, "err", err)
			os.Exit(1)
		}
		logger.Info("product created", "id", p.ID, "slug", p.Slug)
	}

	cs := store.NewCoupons(db)
	for i := range coupons {
		c := coupons[i]
		c.IsActive = true
		if err := coupon.ValidateDefinition(&c); err != nil {
			logger.Error("invalid coupon", "code", c.Code, "err", err)
			os.Exit(1)
		}
		if _, err := cs.FindByCode(ctx, c.Code); err == nil {
			continue
		}
		if err := cs.Create(ctx, &c); err != nil {
			logger.Error("create coupon", "code", c.Code, "err", err)
			os.Exit(1)
		}
		logger.Info("coupon created", "code", c.Code)
	}
}
