package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig 聚合运行时配置，尽量通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string
	DBPath   string

	RedisAddr string
	RedisDB   int

	// Kafka 集群地址（逗号分隔）、通知 Topic、消费者组；地址为空时不启用 Kafka，直接异步发送邮件
	KafkaBrokers  []string
	NotifyTopic   string
	NotifyGroupID string

	// Redis Stream outbox（下单请求只做 XADD，Relay 异步转 Kafka）
	NotifyStream         string
	NotifyStreamGroup    string
	NotifyStreamConsumer string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpayBaseURL   string
	Currency          string

	ResendAPIKey string
	SenderEmail  string

	// Shiprocket 凭证为空时使用固定费率
	ShiprocketEmail    string
	ShiprocketPassword string
	OriginPincode      string
	ShippingFreeAbove  int64
	ShippingFlatRate   int64
	InternationalRate  int64
	CODFee             int64

	// 在线支付订单的保留时长与清理周期
	PaymentGrace  time.Duration
	SweepInterval time.Duration

	CheckoutRateLimit  int
	CheckoutRateWindow time.Duration

	AdminSessionTTL time.Duration
}

// Load 读取并校验配置，缺失时使用默认值。
func Load() (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		DBPath:               getEnv("DB_PATH", "storefront.db"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:         splitCSV(getEnv("KAFKA_BROKERS", "")),
		NotifyTopic:          getEnv("NOTIFY_TOPIC", "storefront-notifications"),
		NotifyGroupID:        getEnv("NOTIFY_GROUP_ID", "storefront-mailer"),
		NotifyStream:         getEnv("NOTIFY_STREAM", "storefront:notifications"),
		NotifyStreamGroup:    getEnv("NOTIFY_STREAM_GROUP", "storefront-relay-group"),
		NotifyStreamConsumer: getEnv("NOTIFY_STREAM_CONSUMER", "storefront-relay-1"),
		RazorpayKeyID:        getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret:    getEnv("RAZORPAY_KEY_SECRET", ""),
		RazorpayBaseURL:      getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),
		Currency:             getEnv("CURRENCY", "INR"),
		ResendAPIKey:         getEnv("RESEND_API_KEY", ""),
		SenderEmail:          getEnv("SENDER_EMAIL", "orders@dubaisr.in"),
		ShiprocketEmail:      getEnv("SHIPROCKET_EMAIL", ""),
		ShiprocketPassword:   getEnv("SHIPROCKET_PASSWORD", ""),
		OriginPincode:        getEnv("ORIGIN_PINCODE", "110001"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return AppConfig{}, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	money := []struct {
		key      string
		fallback int64
		dst      *int64
	}{
		{"SHIPPING_FREE_ABOVE", 299900, &cfg.ShippingFreeAbove},
		{"SHIPPING_FLAT_RATE", 9900, &cfg.ShippingFlatRate},
		{"SHIPPING_INTERNATIONAL_RATE", 250000, &cfg.InternationalRate},
		{"COD_FEE", 4900, &cfg.CODFee},
	}
	for _, m := range money {
		v, err := getEnvInt64(m.key, m.fallback)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid %s: %w", m.key, err)
		}
		if v < 0 {
			return AppConfig{}, fmt.Errorf("%s must be >= 0", m.key)
		}
		*m.dst = v
	}

	durations := []struct {
		key      string
		fallback int
		unit     time.Duration
		dst      *time.Duration
	}{
		{"PAYMENT_GRACE_SEC", 300, time.Second, &cfg.PaymentGrace},
		{"SWEEP_INTERVAL_SEC", 60, time.Second, &cfg.SweepInterval},
		{"CHECKOUT_RATE_WINDOW_SEC", 60, time.Second, &cfg.CheckoutRateWindow},
		{"ADMIN_SESSION_TTL_HOUR", 24 * 7, time.Hour, &cfg.AdminSessionTTL},
	}
	for _, d := range durations {
		v, err := getEnvInt(d.key, d.fallback)
		if err != nil {
			return AppConfig{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if v <= 0 {
			return AppConfig{}, fmt.Errorf("%s must be > 0", d.key)
		}
		*d.dst = time.Duration(v) * d.unit
	}
	if cfg.SweepInterval > time.Minute {
		return AppConfig{}, fmt.Errorf("SWEEP_INTERVAL_SEC must be <= 60")
	}

	rateLimit, err := getEnvInt("CHECKOUT_RATE_LIMIT", 10)
	if err != nil {
		return AppConfig{}, fmt.Errorf("invalid CHECKOUT_RATE_LIMIT: %w", err)
	}
	if rateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("CHECKOUT_RATE_LIMIT must be > 0")
	}
	cfg.CheckoutRateLimit = rateLimit

	if len(cfg.KafkaBrokers) > 0 {
		if cfg.NotifyTopic == "" {
			return AppConfig{}, fmt.Errorf("NOTIFY_TOPIC must not be empty")
		}
		if cfg.NotifyGroupID == "" {
			return AppConfig{}, fmt.Errorf("NOTIFY_GROUP_ID must not be empty")
		}
	}
	if (cfg.ShiprocketEmail == "") != (cfg.ShiprocketPassword == "") {
		return AppConfig{}, fmt.Errorf("SHIPROCKET_EMAIL and SHIPROCKET_PASSWORD must be set together")
	}

	return cfg, nil
}

// KafkaEnabled 是否启用 Stream → Kafka → 邮件 的通知链路。
func (c AppConfig) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// getEnv 读取字符串环境变量，若为空则返回默认值。
func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// getEnvInt 读取整数环境变量，若为空则返回默认值。
func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

// splitCSV 将逗号分隔字符串解析为字符串切片。
func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
