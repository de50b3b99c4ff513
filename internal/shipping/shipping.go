// Package shipping quotes shipping cost and cash-on-delivery fees for an
// order. Amounts are in paise.
package shipping

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrUnavailable means no carrier can serve the request.
	ErrUnavailable = errors.New("shipping unavailable")
	// ErrCODUnavailable means the destination does not accept cash on delivery.
	ErrCODUnavailable = errors.New("cash on delivery unavailable for destination")
)

type Item struct {
	WeightGrams int64
	Quantity    int64
}

type QuoteRequest struct {
	Country  string
	Pincode  string
	Items    []Item
	Subtotal int64
	COD      bool
}

type Quote struct {
	Cost         int64  `json:"cost"`
	CODFee       int64  `json:"cod_fee"`
	Carrier      string `json:"carrier"`
	DeliveryDays string `json:"delivery_days,omitempty"`
	CODAvailable bool   `json:"cod_available"`
}

// Provider returns a quote for a destination and parcel.
type Provider interface {
	Quote(ctx context.Context, req QuoteRequest) (Quote, error)
}

const (
	ZoneIndia         = "india"
	ZoneInternational = "international"
)

// Zone 根据国家判定配送区域；未填写视为国内。
func Zone(country string) string {
	switch strings.ToLower(strings.TrimSpace(country)) {
	case "", "india", "in", "ind":
		return ZoneIndia
	}
	return ZoneInternational
}

// WeightKg 计算包裹总重（kg），最低 0.5kg。
func WeightKg(items []Item) float64 {
	var grams int64
	for _, it := range items {
		grams += it.WeightGrams * it.Quantity
	}
	kg := float64(grams) / 1000
	if kg < 0.5 {
		return 0.5
	}
	return kg
}

// TableRates 固定费率：国内满额包邮，否则收取固定运费；国际件统一费率，不支持货到付款。
type TableRates struct {
	FreeAbove         int64
	FlatRate          int64
	InternationalRate int64
	CODFee            int64
}

func (t TableRates) Quote(_ context.Context, req QuoteRequest) (Quote, error) {
	if Zone(req.Country) == ZoneInternational {
		if req.COD {
			return Quote{}, ErrCODUnavailable
		}
		return Quote{Cost: t.InternationalRate, Carrier: "standard-international"}, nil
	}
	q := Quote{Carrier: "standard", CODAvailable: true}
	if req.Subtotal < t.FreeAbove {
		q.Cost = t.FlatRate
	}
	if req.COD {
		q.CODFee = t.CODFee
	}
	return q, nil
}
