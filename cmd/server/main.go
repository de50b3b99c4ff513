package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/order"
	"storefront/internal/payment"
	"storefront/internal/queue"
	"storefront/internal/router"
	"storefront/internal/shipping"
	"storefront/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	rd "github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	// 1. 连接 SQLite，自动建表
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Error("open db", "err", err)
		os.Exit(1)
	}

	// 2. Redis：限流、清理锁、Shiprocket token 缓存、通知 outbox
	rdb := rd.NewClient(&rd.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer rdb.Close()
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
	}
	cancelPing()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	// 3. 运费：配置了 Shiprocket 凭证时实时询价，否则固定费率
	var rates shipping.Provider = shipping.TableRates{
		FreeAbove:         cfg.ShippingFreeAbove,
		FlatRate:          cfg.ShippingFlatRate,
		InternationalRate: cfg.InternationalRate,
		CODFee:            cfg.CODFee,
	}
	if cfg.ShiprocketEmail != "" {
		rates = shipping.NewShiprocket(cfg.ShiprocketEmail, cfg.ShiprocketPassword, cfg.OriginPincode, rdb, logger)
	}

	// 4. 邮件：启用 Kafka 时走 outbox → relay → Kafka → consumer，否则后台 goroutine 直接发送
	var mailer notify.Sender = notify.Discard{Logger: logger}
	if cfg.ResendAPIKey != "" {
		mailer = notify.NewResend(cfg.ResendAPIKey, cfg.SenderEmail)
	}
	async := notify.NewAsync(mailer, logger, 15*time.Second)
	var sender notify.Sender = async
	if cfg.KafkaEnabled() {
		producer := queue.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic)
		defer producer.Close()
		consumer := queue.NewConsumer(cfg.KafkaBrokers, cfg.NotifyTopic, cfg.NotifyGroupID, rdb, mailer, logger)
		defer consumer.Close()

		relay := queue.NewRelay(rdb, producer, cfg.NotifyStream, cfg.NotifyStreamGroup, cfg.NotifyStreamConsumer, logger)
		spawn(relay.Run)
		spawn(consumer.Run)
		sender = queue.NewOutbox(rdb, cfg.NotifyStream)
	}

	svc := order.NewService(order.Deps{
		Products: store.NewProducts(db),
		Orders:   store.NewOrders(db),
		Coupons:  store.NewCoupons(db),
		Gateway:  payment.NewRazorpay(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, cfg.RazorpayBaseURL),
		Shipping: rates,
		Notifier: notify.NewNotifier(sender, logger),
		Activity: store.NewAdmins(db),
		Metrics:  m,
		Logger:   logger,
	}, order.Config{Currency: cfg.Currency, GraceWindow: cfg.PaymentGrace})

	// 5. 过期订单清理
	spawn(order.NewSweeper(svc, rdb, cfg.SweepInterval).Run)

	r := gin.Default()
	router.Setup(r, router.Deps{
		DB:       db,
		Redis:    rdb,
		Orders:   svc,
		Shipping: rates,
		Metrics:  m,
		Logger:   logger,
		Config:   cfg,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr, "kafka", cfg.KafkaEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	wg.Wait()
	async.Wait()
}
