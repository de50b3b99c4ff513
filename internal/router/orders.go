package router

import (
	"errors"

	"storefront/internal/middleware"
	"storefront/internal/model"
	"storefront/internal/order"
	"storefront/internal/shipping"

	"github.com/gin-gonic/gin"
)

// createOrder 下单入口。成功后清空当前会话的购物车。
func (h *handlers) createOrder(c *gin.Context) {
	var req order.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	o, err := h.Orders.Create(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	if sid := c.GetHeader(middleware.SessionHeader); sid != "" {
		if err := h.carts.Delete(ctx, sid); err != nil {
			h.Logger.Warn("clear cart after checkout", "order_no", o.OrderNo, "err", err)
		}
	}

	data := gin.H{"order": o}
	if o.PaymentMethod == model.PaymentRazorpay {
		// 前端用于拉起支付组件
		data["razorpay_key_id"] = h.Config.RazorpayKeyID
		data["razorpay_order_id"] = o.GatewayOrderID
		data["amount"] = o.Total
		data["currency"] = h.Config.Currency
	}
	ok(c, data)
}

func (h *handlers) verifyPayment(c *gin.Context) {
	var req order.VerifyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	o, err := h.Orders.VerifyPayment(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, o)
}

func (h *handlers) getOrder(c *gin.Context) {
	o, err := h.Orders.Get(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, o)
}

// shippingQuote 结算页运费试算。
func (h *handlers) shippingQuote(c *gin.Context) {
	var req struct {
		Country  string `json:"country"`
		Pincode  string `json:"pincode"`
		Subtotal int64  `json:"subtotal" binding:"min=0"`
		COD      bool   `json:"cod"`
		Items    []struct {
			ProductID uint  `json:"product_id" binding:"required"`
			Quantity  int64 `json:"quantity" binding:"required,min=1"`
		} `json:"items" binding:"dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	qr := shipping.QuoteRequest{Country: req.Country, Pincode: req.Pincode, Subtotal: req.Subtotal, COD: req.COD}
	for _, it := range req.Items {
		weight := int64(500)
		if p, err := h.products.FindByID(c.Request.Context(), it.ProductID); err == nil {
			weight = p.WeightGrams
		}
		qr.Items = append(qr.Items, shipping.Item{WeightGrams: weight, Quantity: it.Quantity})
	}
	q, err := h.Shipping.Quote(c.Request.Context(), qr)
	if err != nil {
		if errors.Is(err, shipping.ErrCODUnavailable) {
			badRequest(c, err.Error())
			return
		}
		h.fail(c, &order.Error{Kind: order.KindGatewayUnavailable, Message: "shipping rates unavailable"})
		return
	}
	ok(c, q)
}
