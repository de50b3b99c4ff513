package router

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"storefront/internal/config"
	"storefront/internal/coupon"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/order"
	"storefront/internal/shipping"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps 路由依赖。
type Deps struct {
	DB       *gorm.DB
	Redis    *rd.Client
	Orders   *order.Service
	Shipping shipping.Provider
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Config   config.AppConfig
}

type handlers struct {
	Deps
	categories *store.Categories
	products   *store.Products
	orders     *store.Orders
	coupons    *store.Coupons
	carts      *store.Carts
	admins     *store.Admins
}

// Setup 注册全部 HTTP 路由。
func Setup(r *gin.Engine, d Deps) {
	h := &handlers{
		Deps:       d,
		categories: store.NewCategories(d.DB),
		products:   store.NewProducts(d.DB),
		orders:     store.NewOrders(d.DB),
		coupons:    store.NewCoupons(d.DB),
		carts:      store.NewCarts(d.DB),
		admins:     store.NewAdmins(d.DB),
	}
	r.Use(middleware.Metrics(d.Metrics))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "pong"})
	})
	r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))

	api := r.Group("/api")
	api.GET("/health", h.health)

	// Catalog
	api.GET("/categories", h.listCategories)
	api.GET("/categories/:id", h.getCategory)
	api.GET("/products", h.listProducts)
	api.GET("/products/brands", h.listBrands)
	api.GET("/products/slug/:slug", h.getProductBySlug)
	api.GET("/products/:id", h.getProduct)

	// Cart
	api.GET("/cart", h.getCart)
	api.POST("/cart/items", h.addCartItem)
	api.PUT("/cart/items/:product_id", h.updateCartItem)
	api.DELETE("/cart/items/:product_id", h.removeCartItem)
	api.POST("/cart/coupon", h.applyCartCoupon)
	api.DELETE("/cart/coupon", h.removeCartCoupon)
	api.DELETE("/cart", h.clearCart)

	api.POST("/coupons/validate", h.validateCoupon)
	api.POST("/shipping/quote", h.shippingQuote)

	// Orders
	checkoutLimit := middleware.RedisRateLimit(d.Redis, "checkout", d.Config.CheckoutRateLimit, d.Config.CheckoutRateWindow)
	api.POST("/orders", checkoutLimit, h.createOrder)
	api.POST("/orders/verify-payment", checkoutLimit, h.verifyPayment)
	api.GET("/orders/:order_no", h.getOrder)

	// Admin
	api.POST("/admin/login", middleware.RedisRateLimit(d.Redis, "admin_login", 10, d.Config.CheckoutRateWindow), h.login)
	api.POST("/admin/logout", h.logout)

	admin := api.Group("/admin", middleware.RequireAdmin(h.admins))
	admin.GET("/me", h.me)
	admin.POST("/categories", h.createCategory)
	admin.PUT("/categories/:id", h.updateCategory)
	admin.DELETE("/categories/:id", h.deleteCategory)
	admin.POST("/products", h.createProduct)
	admin.PUT("/products/:id", h.updateProduct)
	admin.DELETE("/products/:id", h.deleteProduct)
	admin.GET("/coupons", h.listCoupons)
	admin.POST("/coupons", h.createCoupon)
	admin.PUT("/coupons/:id", h.updateCoupon)
	admin.DELETE("/coupons/:id", h.deleteCoupon)
	admin.GET("/orders", h.listOrders)
	admin.PUT("/orders/:order_no/status", h.updateOrderStatus)
	admin.PUT("/orders/:order_no/tracking", h.updateTracking)
	admin.GET("/dashboard", h.dashboard)
	admin.GET("/activity", h.listActivity)
}

func (h *handlers) health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{"database": "ok", "redis": "ok"}
	if sqlDB, err := h.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	}
	if err := h.Redis.Ping(c.Request.Context()).Err(); err != nil {
		checks["redis"] = "down"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"code": 0, "data": checks})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"code": 0, "data": data})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": msg, "kind": order.KindInvalidRequest})
}

var kindStatus = map[order.Kind]int{
	order.KindNotFound:                  http.StatusNotFound,
	order.KindInsufficientStock:         http.StatusConflict,
	order.KindInvalidCoupon:             http.StatusBadRequest,
	order.KindPaymentVerificationFailed: http.StatusBadRequest,
	order.KindGatewayUnavailable:        http.StatusServiceUnavailable,
	order.KindConflict:                  http.StatusConflict,
	order.KindInvalidRequest:            http.StatusBadRequest,
}

// fail 把错误映射为统一响应体；未分类的错误只记日志，对外返回通用信息。
func (h *handlers) fail(c *gin.Context, err error) {
	var oe *order.Error
	var ce *coupon.InvalidError
	switch {
	case errors.As(err, &oe):
		status := kindStatus[oe.Kind]
		body := gin.H{"code": status, "msg": oe.Message, "kind": oe.Kind}
		if oe.Reason != "" {
			body["reason"] = oe.Reason
		}
		if oe.Kind == order.KindInsufficientStock {
			body["product_id"] = oe.ProductID
			body["available"] = oe.Available
		}
		if oe.Unwrap() != nil {
			h.Logger.Warn("request failed", "path", c.FullPath(), "kind", oe.Kind, "err", err)
		}
		c.JSON(status, body)
	case errors.As(err, &ce):
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": ce.Error(), "kind": order.KindInvalidCoupon, "reason": ce.Reason})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "msg": "not found", "kind": order.KindNotFound})
	default:
		h.Logger.Error("internal error", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": "internal error"})
	}
}

func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
