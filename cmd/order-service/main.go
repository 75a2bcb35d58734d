package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gospodar-shop/order-service/internal/cart"
	"github.com/gospodar-shop/order-service/internal/config"
	"github.com/gospodar-shop/order-service/internal/db"
	"github.com/gospodar-shop/order-service/internal/handler"
	"github.com/gospodar-shop/order-service/internal/janitor"
	"github.com/gospodar-shop/order-service/internal/notify"
	"github.com/gospodar-shop/order-service/internal/order"
	"github.com/gospodar-shop/order-service/internal/payment"
	"github.com/gospodar-shop/order-service/internal/product"
	"github.com/gospodar-shop/order-service/internal/scheduler"
	"github.com/gospodar-shop/order-service/internal/shipping"
	"github.com/gospodar-shop/order-service/internal/token"
	"github.com/gospodar-shop/order-service/internal/transport"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "order-service").Logger()

	log.Info().Msg("Order service starting...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	ctx := context.Background()
	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	var notifier notify.Notifier = notify.Nop{}
	kafkaNotifier, err := notify.NewKafkaNotifier(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		// Notifications are best-effort; the shop keeps selling without them.
		log.Warn().Err(err).Msg("Kafka unavailable, notifications disabled")
	} else {
		notifier = kafkaNotifier
		defer kafkaNotifier.Close()
	}

	carrier := shipping.NewClient(cfg.NovaPoshta.APIKey, cfg.NovaPoshta.BaseURL, cfg.NovaPoshta.Timeout)

	orderRepo := order.NewRepository(pg.Pool)
	cartRepo := cart.NewRepository(pg.Pool)
	productRepo := product.NewRepository(pg.Pool)
	tokenRepo := token.NewRepository(pg.Pool)
	paymentRepo := payment.NewRepository(pg.Pool)

	orderSvc := order.NewService(orderRepo, cartRepo, productRepo, carrier, notifier)
	cartSvc := cart.NewService(cartRepo, productRepo)
	paymentSvc := payment.NewService(paymentRepo, orderRepo, notifier,
		payment.NewLiqPay(cfg.LiqPay.PublicKey, cfg.LiqPay.PrivateKey),
		payment.NewMono(cfg.Mono.WebhookSecret, cfg.Mono.APIURL, cfg.Mono.Token, cfg.Mono.Timeout),
	)

	jan := janitor.New(janitor.Config{
		AutoCancelAfter: cfg.Janitor.AutoCancelAfter,
		AutoTrackPage:   cfg.Janitor.AutoTrackPage,
		CartTTL:         cfg.Janitor.CartTTL,
		CarrierTimeout:  cfg.NovaPoshta.Timeout,
	}, orderSvc, orderRepo, carrier, cartRepo, tokenRepo)

	sched, err := scheduler.New(scheduler.Specs{
		AutoCancel:   cfg.Janitor.AutoCancelSpec,
		AutoTrack:    cfg.Janitor.AutoTrackSpec,
		CartCleanup:  cfg.Janitor.CartCleanupSpec,
		TokenCleanup: cfg.Janitor.TokenCleanupSpec,
	}, jan)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build scheduler")
	}
	sched.Start()
	defer sched.Stop()

	router := transport.NewRouter(transport.Handlers{
		Orders:   handler.NewOrderHandler(orderSvc),
		Admin:    handler.NewAdminHandler(orderSvc),
		Cart:     handler.NewCartHandler(cartSvc),
		Payments: handler.NewPaymentHandler(paymentSvc),
		Cron:     handler.NewCronHandler(jan),
	}, cfg.App.CronSecret)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
