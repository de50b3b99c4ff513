package order

import (
	"errors"
	"fmt"

	"storefront/internal/coupon"
)

// Kind 稳定的机器可读错误类型，直接出现在 API 响应的 "kind" 字段。
type Kind string

const (
	KindNotFound                  Kind = "not_found"
	KindInsufficientStock         Kind = "insufficient_stock"
	KindInvalidCoupon             Kind = "invalid_coupon"
	KindPaymentVerificationFailed Kind = "payment_verification_failed"
	KindGatewayUnavailable        Kind = "gateway_unavailable"
	KindConflict                  Kind = "conflict"
	KindInvalidRequest            Kind = "invalid_request"
)

// Error 是订单流程对外暴露的结构化错误。Message 可以直接展示给用户，
// 内部原因只通过 Unwrap 暴露给日志。
type Error struct {
	Kind    Kind
	Reason  string // invalid_coupon 的子原因
	Message string

	ProductID uint
	Available int64 // insufficient_stock 时的当前库存

	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Is 按 Kind 匹配，使 errors.Is(err, order.ErrNotFound) 可用。
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Reason == "" || t.Reason == e.Reason)
}

var (
	ErrNotFound                  = &Error{Kind: KindNotFound}
	ErrInsufficientStock         = &Error{Kind: KindInsufficientStock}
	ErrInvalidCoupon             = &Error{Kind: KindInvalidCoupon}
	ErrPaymentVerificationFailed = &Error{Kind: KindPaymentVerificationFailed}
	ErrGatewayUnavailable        = &Error{Kind: KindGatewayUnavailable}
	ErrConflict                  = &Error{Kind: KindConflict}
	ErrInvalidRequest            = &Error{Kind: KindInvalidRequest}
)

// KindOf 返回 err 链上第一个 *Error 的 Kind；非结构化错误返回空串。
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func notFound(what string) *Error {
	return &Error{Kind: KindNotFound, Message: what + " not found"}
}

func insufficient(productID uint, name string, available int64) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("insufficient stock for %s: only %d available", name, available),
		ProductID: productID,
		Available: available,
	}
}

func invalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

func conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func gatewayUnavailable(msg string, err error) *Error {
	return &Error{Kind: KindGatewayUnavailable, Message: msg, err: err}
}

// fromCoupon 把 coupon.InvalidError 转为结构化错误，其他错误原样返回。
func fromCoupon(err error) error {
	var ce *coupon.InvalidError
	if errors.As(err, &ce) {
		return &Error{Kind: KindInvalidCoupon, Reason: string(ce.Reason), Message: ce.Error(), err: ce}
	}
	return err
}
