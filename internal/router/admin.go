package router

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/coupon"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/order"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func (h *handlers) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	u, err := h.admins.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		h.fail(c, err)
		return
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "msg": "invalid email or password", "kind": "authentication_required"})
		return
	}

	sess := &model.AdminSession{
		Token:     strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", ""),
		AdminID:   u.ID,
		ExpiresAt: time.Now().UTC().Add(h.Config.AdminSessionTTL),
	}
	if err := h.admins.CreateSession(ctx, sess); err != nil {
		h.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, sess.Token, int(h.Config.AdminSessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	h.Logger.Info("admin logged in", "admin", u.Email)
	ok(c, gin.H{"admin": u, "token": sess.Token, "expires_at": sess.ExpiresAt})
}

func (h *handlers) logout(c *gin.Context) {
	if token := middleware.SessionToken(c); token != "" {
		if err := h.admins.DeleteSession(c.Request.Context(), token); err != nil {
			h.fail(c, err)
			return
		}
	}
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	ok(c, gin.H{"logged_out": true})
}

func (h *handlers) me(c *gin.Context) {
	ok(c, middleware.Admin(c))
}

func (h *handlers) listCoupons(c *gin.Context) {
	list, err := h.coupons.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}

type couponRequest struct {
	Code          string             `json:"code" binding:"required"`
	DiscountType  model.DiscountType `json:"discount_type" binding:"required"`
	DiscountValue int64              `json:"discount_value" binding:"min=1"`
	MinCartValue  int64              `json:"min_cart_value" binding:"min=0"`
	MaxUses       *int64             `json:"max_uses" binding:"omitempty,min=1"`
	ExpiresAt     *time.Time         `json:"expires_at"`
	IsActive      *bool              `json:"is_active"`
}

func (r couponRequest) model() *model.Coupon {
	cp := &model.Coupon{
		Code:          r.Code,
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		MinCartValue:  r.MinCartValue,
		MaxUses:       r.MaxUses,
		ExpiresAt:     r.ExpiresAt,
		IsActive:      true,
	}
	if r.IsActive != nil {
		cp.IsActive = *r.IsActive
	}
	return cp
}

func (h *handlers) createCoupon(c *gin.Context) {
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cp := req.model()
	if err := coupon.ValidateDefinition(cp); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if existing, err := h.coupons.FindByCode(ctx, cp.Code); err == nil && existing != nil {
		h.fail(c, &order.Error{Kind: order.KindConflict, Message: "coupon code already exists"})
		return
	}
	if err := h.coupons.Create(ctx, cp); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cp)
}

func (h *handlers) updateCoupon(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	var req couponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	cp := req.model()
	if err := coupon.ValidateDefinition(cp); err != nil {
		badRequest(c, err.Error())
		return
	}
	updated, err := h.coupons.Update(c.Request.Context(), id, cp)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, updated)
}

func (h *handlers) deleteCoupon(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if err := h.coupons.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"deleted": id})
}

func (h *handlers) listOrders(c *gin.Context) {
	list, total, err := h.orders.List(c.Request.Context(), store.OrderFilter{
		OrderStatus:   model.OrderStatus(c.Query("status")),
		PaymentStatus: model.PaymentStatus(c.Query("payment_status")),
		Skip:          queryInt(c, "skip", 0),
		Limit:         queryInt(c, "limit", 50),
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"orders": list, "total": total})
}

func (h *handlers) updateOrderStatus(c *gin.Context) {
	var req struct {
		Status model.OrderStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.Orders.UpdateStatus(c.Request.Context(), c.Param("order_no"), req.Status, middleware.Admin(c).Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, o)
}

func (h *handlers) updateTracking(c *gin.Context) {
	var req order.TrackingInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.Orders.UpdateTracking(c.Request.Context(), c.Param("order_no"), req, middleware.Admin(c).Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, o)
}

const lowStockThreshold = 5

func (h *handlers) dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	stats, err := h.orders.Stats(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	active, err := h.products.CountActive(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	low, err := h.products.CountLowStock(ctx, lowStockThreshold)
	if err != nil {
		h.fail(c, err)
		return
	}
	recent, err := h.orders.Recent(ctx, 5)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{
		"total_orders":      stats.Total,
		"pending_orders":    stats.Pending,
		"processing_orders": stats.Processing,
		"total_revenue":     stats.Revenue,
		"active_products":   active,
		"low_stock":         low,
		"recent_orders":     recent,
	})
}

func (h *handlers) listActivity(c *gin.Context) {
	list, err := h.admins.ListActivity(c.Request.Context(), queryInt(c, "skip", 0), queryInt(c, "limit", 50))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, list)
}
