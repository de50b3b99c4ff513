package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"storefront/internal/model"
)

// Kind 通知类型，决定主题与模板。
type Kind string

const (
	KindOrderConfirmed   Kind = "order_confirmed"   // 货到付款下单成功
	KindPaymentPending   Kind = "payment_pending"   // 在线支付待完成提醒
	KindPaymentConfirmed Kind = "payment_confirmed" // 在线支付成功
	KindPaymentFailed    Kind = "payment_failed"
	KindShipped          Kind = "shipped"
	KindDelivered        Kind = "delivered"
	KindAutoCancelled    Kind = "auto_cancelled"   // 超时未支付，系统取消
	KindManualCancelled  Kind = "manual_cancelled" // 管理员取消
)

const storeName = "Dubai SR"

var subjects = map[Kind]string{
	KindOrderConfirmed:   "Order Confirmed - %s",
	KindPaymentPending:   "Complete your payment - %s",
	KindPaymentConfirmed: "Payment Confirmed - %s",
	KindPaymentFailed:    "Payment Failed - %s",
	KindShipped:          "Order Shipped - %s",
	KindDelivered:        "Order Delivered - %s",
	KindAutoCancelled:    "Order Cancelled (payment not received) - %s",
	KindManualCancelled:  "Order Cancelled - %s",
}

var templates = template.Must(template.New("notify").Funcs(template.FuncMap{
	"money": FormatMoney,
}).Parse(`
{{define "order_confirmed"}}<h1>Order Confirmed - {{.Store}}</h1>
<p>Thank you for your order!</p>
<p><strong>Order ID:</strong> {{.Order.OrderNo}}</p>
<p><strong>Total:</strong> ₹{{money .Order.Total}}</p>
<p><strong>Payment:</strong> Cash on Delivery</p>
<p>Your order is confirmed and under processing.</p>{{end}}

{{define "payment_pending"}}<h1>Your items are waiting - {{.Store}}</h1>
<p>We have reserved your items for a few minutes.</p>
<p><strong>Order ID:</strong> {{.Order.OrderNo}}</p>
<p><strong>Total:</strong> ₹{{money .Order.Total}}</p>
<p>Please complete the payment to confirm your order.</p>{{end}}

{{define "payment_confirmed"}}<h1>Payment Received - {{.Store}}</h1>
<p>Thank you for your payment!</p>
<p><strong>Order ID:</strong> {{.Order.OrderNo}}</p>
<p><strong>Total:</strong> ₹{{money .Order.Total}}</p>
<p>Your order is confirmed and under processing.</p>{{end}}

{{define "payment_failed"}}<h1>Payment Failed - {{.Store}}</h1>
<p>We could not verify the payment for order <strong>{{.Order.OrderNo}}</strong>.</p>
<p>No money has been captured for this attempt. You can retry the payment before the reservation expires.</p>{{end}}

{{define "shipped"}}<h1>Your Order Has Been Shipped - {{.Store}}</h1>
<p>Great news! Your order is on its way.</p>
<p><strong>Order ID:</strong> {{.Order.OrderNo}}</p>
<p><strong>Courier:</strong> {{.Order.CourierName}}</p>
<p><strong>Tracking Number:</strong> {{.Order.TrackingNumber}}</p>
{{if .Order.TrackingURL}}<p><strong>Track your order:</strong> <a href="{{.Order.TrackingURL}}">Click here</a></p>{{end}}{{end}}

{{define "delivered"}}<h1>Order Delivered - {{.Store}}</h1>
<p>Your order <strong>{{.Order.OrderNo}}</strong> has been delivered. Enjoy!</p>{{end}}

{{define "auto_cancelled"}}<h1>Order Cancelled - {{.Store}}</h1>
<p>We did not receive payment for order <strong>{{.Order.OrderNo}}</strong> in time, so it has been cancelled and the items released.</p>
<p>You are welcome to place the order again.</p>{{end}}

{{define "manual_cancelled"}}<h1>Order Cancelled - {{.Store}}</h1>
<p>Your order <strong>{{.Order.OrderNo}}</strong> has been cancelled by our team.</p>
<p>If you have already paid, the refund will be processed to your original payment method.</p>{{end}}
`))

// Render 渲染某类通知的主题与 HTML 正文。
func Render(kind Kind, o *model.Order) (subject, html string, err error) {
	format, ok := subjects[kind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification kind %q", kind)
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, string(kind), struct {
		Store string
		Order *model.Order
	}{storeName, o}); err != nil {
		return "", "", err
	}
	return fmt.Sprintf(format, o.OrderNo), buf.String(), nil
}

// FormatMoney 把分格式化为带千分位的金额，如 209900 → "2,099.00"。
func FormatMoney(paise int64) string {
	neg := paise < 0
	if neg {
		paise = -paise
	}
	whole := fmt.Sprintf("%d", paise/100)
	var b bytes.Buffer
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := fmt.Sprintf("%s.%02d", b.String(), paise%100)
	if neg {
		return "-" + out
	}
	return out
}
