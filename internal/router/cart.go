package router

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/coupon"
	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/order"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
)

// sessionID 匿名购物车以会话 ID 标识：优先请求头，其次 query。
func sessionID(c *gin.Context) (string, bool) {
	sid := c.GetHeader(middleware.SessionHeader)
	if sid == "" {
		sid = c.Query("session_id")
	}
	if sid == "" || len(sid) > 64 {
		badRequest(c, "missing or invalid "+middleware.SessionHeader)
		return "", false
	}
	return sid, true
}

func cartView(cart *model.Cart) gin.H {
	subtotal := cart.Subtotal()
	return gin.H{
		"cart":     cart,
		"subtotal": subtotal,
		"discount": cart.CouponDiscount,
		"total":    subtotal - cart.CouponDiscount,
	}
}

func (h *handlers) getCart(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	cart, err := h.carts.Get(c.Request.Context(), sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cartView(cart))
}

type cartItemRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,min=1"`
	Size      string `json:"size"`
}

// addCartItem 加入购物车；同商品同尺码合并数量。只校验库存，不占用库存。
func (h *handlers) addCartItem(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	var req cartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	p, err := h.products.FindByID(ctx, req.ProductID)
	if err != nil || !p.IsActive {
		if err == nil || errors.Is(err, store.ErrNotFound) {
			err = &order.Error{Kind: order.KindNotFound, Message: "product not found"}
		}
		h.fail(c, err)
		return
	}
	cart, err := h.carts.Get(ctx, sid)
	if err != nil {
		h.fail(c, err)
		return
	}

	idx := -1
	for i, it := range cart.Items {
		if it.ProductID == req.ProductID && it.Size == req.Size {
			idx = i
			break
		}
	}
	want := req.Quantity
	if idx >= 0 {
		want += cart.Items[idx].Quantity
	}
	if p.Stock < want {
		h.fail(c, &order.Error{Kind: order.KindInsufficientStock, Message: fmt.Sprintf("only %d in stock", p.Stock), ProductID: p.ID, Available: p.Stock})
		return
	}
	item := model.CartItem{ProductID: p.ID, Name: p.Name, Price: p.Price, SalePrice: p.SalePrice, Quantity: want, Size: req.Size}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	if idx >= 0 {
		cart.Items[idx] = item
	} else {
		cart.Items = append(cart.Items, item)
	}
	h.saveCart(c, cart)
}

// updateCartItem 修改数量；数量 <= 0 时移除。
func (h *handlers) updateCartItem(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	id, valid := paramID(c, "product_id")
	if !valid {
		return
	}
	var req struct {
		Quantity int64  `json:"quantity"`
		Size     string `json:"size"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	cart, err := h.carts.Get(ctx, sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	idx := -1
	for i, it := range cart.Items {
		if it.ProductID == id && it.Size == req.Size {
			idx = i
			break
		}
	}
	if idx < 0 {
		h.fail(c, &order.Error{Kind: order.KindNotFound, Message: "item not in cart"})
		return
	}
	if req.Quantity <= 0 {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
		h.saveCart(c, cart)
		return
	}
	p, err := h.products.FindByID(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if p.Stock < req.Quantity {
		h.fail(c, &order.Error{Kind: order.KindInsufficientStock, Message: fmt.Sprintf("only %d in stock", p.Stock), ProductID: p.ID, Available: p.Stock})
		return
	}
	cart.Items[idx].Quantity = req.Quantity
	h.saveCart(c, cart)
}

func (h *handlers) removeCartItem(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	id, valid := paramID(c, "product_id")
	if !valid {
		return
	}
	size := c.Query("size")
	cart, err := h.carts.Get(c.Request.Context(), sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	kept := cart.Items[:0]
	for _, it := range cart.Items {
		if it.ProductID == id && it.Size == size {
			continue
		}
		kept = append(kept, it)
	}
	cart.Items = kept
	h.saveCart(c, cart)
}

func (h *handlers) applyCartCoupon(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	cart, err := h.carts.Get(ctx, sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	code := model.NormalizeCode(req.Code)
	discount, err := h.evaluateCoupon(ctx, code, cart.Subtotal())
	if err != nil {
		h.fail(c, err)
		return
	}
	cart.CouponCode = code
	cart.CouponDiscount = discount
	if err := h.carts.Save(ctx, cart); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cartView(cart))
}

func (h *handlers) removeCartCoupon(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	cart, err := h.carts.Get(c.Request.Context(), sid)
	if err != nil {
		h.fail(c, err)
		return
	}
	cart.CouponCode = ""
	cart.CouponDiscount = 0
	h.saveCart(c, cart)
}

func (h *handlers) clearCart(c *gin.Context) {
	sid, valid := sessionID(c)
	if !valid {
		return
	}
	if err := h.carts.Delete(c.Request.Context(), sid); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cartView(&model.Cart{SessionID: sid, Items: []model.CartItem{}}))
}

// saveCart 商品变化后重新计算优惠；优惠券失效时自动移除。
func (h *handlers) saveCart(c *gin.Context, cart *model.Cart) {
	ctx := c.Request.Context()
	if cart.CouponCode != "" {
		discount, err := h.evaluateCoupon(ctx, cart.CouponCode, cart.Subtotal())
		var ce *coupon.InvalidError
		switch {
		case errors.As(err, &ce):
			cart.CouponCode, cart.CouponDiscount = "", 0
		case err != nil:
			h.fail(c, err)
			return
		default:
			cart.CouponDiscount = discount
		}
	}
	if err := h.carts.Save(ctx, cart); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, cartView(cart))
}

// evaluateCoupon 与下单使用同一套校验规则。
func (h *handlers) evaluateCoupon(ctx context.Context, code string, subtotal int64) (int64, error) {
	cp, err := h.coupons.FindByCode(ctx, code)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return 0, err
	}
	return coupon.Evaluate(cp, code, subtotal, time.Now().UTC())
}

// validateCoupon 结算页校验优惠码，返回折扣金额。
func (h *handlers) validateCoupon(c *gin.Context) {
	var req struct {
		Code      string `json:"code" binding:"required"`
		CartTotal int64  `json:"cart_total" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	code := model.NormalizeCode(req.Code)
	discount, err := h.evaluateCoupon(c.Request.Context(), code, req.CartTotal)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, gin.H{"valid": true, "code": code, "discount": discount, "final_total": req.CartTotal - discount})
}
