package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	rediskey "storefront/pkg/redis"

	rd "github.com/redis/go-redis/v9"
)

const ShiprocketBaseURL = "https://apiv2.shiprocket.in/v1/external"

// Shiprocket 调用 Shiprocket 运价接口：国内优先 DTDC，国际优先 DHL。
// 访问令牌缓存在 Redis，401 时刷新一次后重试。
type Shiprocket struct {
	Email         string
	Password      string
	BaseURL       string
	OriginPincode string
	TokenTTL      time.Duration

	rdb    *rd.Client
	hc     *http.Client
	logger *slog.Logger
}

func NewShiprocket(email, password, originPincode string, rdb *rd.Client, logger *slog.Logger) *Shiprocket {
	return &Shiprocket{
		Email:         email,
		Password:      password,
		BaseURL:       ShiprocketBaseURL,
		OriginPincode: originPincode,
		TokenTTL:      9 * 24 * time.Hour,
		rdb:           rdb,
		hc:            &http.Client{Timeout: 15 * time.Second},
		logger:        logger,
	}
}

type courier struct {
	CourierName string  `json:"courier_name"`
	Freight     float64 `json:"freight_charge"`
	CODCharges  float64 `json:"cod_charges"`
	ETD         string  `json:"etd"`
	COD         int     `json:"cod"`
}

type serviceabilityResponse struct {
	Data struct {
		Couriers []courier `json:"available_courier_companies"`
	} `json:"data"`
}

var errUnauthorized = errors.New("shiprocket unauthorized")

func (s *Shiprocket) Quote(ctx context.Context, req QuoteRequest) (Quote, error) {
	zone := Zone(req.Country)
	if zone == ZoneInternational && req.COD {
		return Quote{}, ErrCODUnavailable
	}
	preferred := "DTDC"
	if zone == ZoneInternational {
		preferred = "DHL"
	}

	couriers, err := s.rates(ctx, req, false)
	if errors.Is(err, errUnauthorized) {
		s.logger.Warn("shiprocket token rejected, refreshing")
		couriers, err = s.rates(ctx, req, true)
	}
	if err != nil {
		return Quote{}, err
	}
	if len(couriers) == 0 {
		return Quote{}, fmt.Errorf("%w: no courier for %s", ErrUnavailable, req.Pincode)
	}

	chosen := couriers[0]
	for _, c := range couriers {
		if strings.Contains(strings.ToUpper(c.CourierName), preferred) {
			chosen = c
			break
		}
	}
	q := Quote{
		Cost:         toPaise(chosen.Freight),
		Carrier:      chosen.CourierName,
		DeliveryDays: chosen.ETD,
		CODAvailable: zone == ZoneIndia && chosen.COD == 1,
	}
	if req.COD {
		if !q.CODAvailable {
			return Quote{}, ErrCODUnavailable
		}
		q.CODFee = toPaise(chosen.CODCharges)
	}
	return q, nil
}

func (s *Shiprocket) rates(ctx context.Context, req QuoteRequest, refresh bool) ([]courier, error) {
	token, err := s.token(ctx, refresh)
	if err != nil {
		return nil, err
	}
	cod := "0"
	if req.COD {
		cod = "1"
	}
	q := url.Values{}
	q.Set("pickup_postcode", s.OriginPincode)
	q.Set("delivery_postcode", req.Pincode)
	q.Set("weight", strconv.FormatFloat(WeightKg(req.Items), 'f', 2, 64))
	q.Set("cod", cod)
	q.Set("declared_value", strconv.FormatFloat(float64(req.Subtotal)/100, 'f', 2, 64))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/courier/serviceability/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized && !refresh {
		return nil, errUnauthorized
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrUnavailable, resp.StatusCode, string(b))
	}
	var out serviceabilityResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return out.Data.Couriers, nil
}

// token 优先读取缓存；refresh=true 时强制重新登录。
func (s *Shiprocket) token(ctx context.Context, refresh bool) (string, error) {
	key := rediskey.ShiprocketTokenKey()
	if !refresh {
		cached, err := s.rdb.Get(ctx, key).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
		if err != nil && !errors.Is(err, rd.Nil) {
			// Redis 出错时降级为直接登录
			s.logger.Warn("shiprocket token cache read failed", "err", err)
		}
	}

	body, _ := json.Marshal(map[string]string{"email": s.Email, "password": s.Password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: login: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: login status=%d", ErrUnavailable, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Token == "" {
		return "", fmt.Errorf("%w: no token in login response", ErrUnavailable)
	}
	if err := s.rdb.Set(ctx, key, out.Token, s.TokenTTL).Err(); err != nil {
		s.logger.Warn("shiprocket token cache write failed", "err", err)
	}
	return out.Token, nil
}

func toPaise(rupees float64) int64 {
	return int64(math.Round(rupees * 100))
}
