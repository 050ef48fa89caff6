package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PizzaurumBackend/internal/config"
	"PizzaurumBackend/internal/db"
	"PizzaurumBackend/internal/feed"
	apihttp "PizzaurumBackend/internal/http"
	"PizzaurumBackend/internal/notify"
	"PizzaurumBackend/internal/services"
	"PizzaurumBackend/internal/store"
	"PizzaurumBackend/internal/stripe"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DB.DSN)
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer pool.Close()

	st := store.New(pool)
	processor := stripe.NewClient(cfg.Stripe.APIBaseURL, cfg.Stripe.SecretKey)
	hub := feed.NewHub(logger.Named("feed"))

	fees := &services.FeeResolver{Processor: processor, Log: logger.Named("fees")}
	materializer := &services.Materializer{
		Orders: st,
		Users:  st,
		Email:  notify.NewEmailRelay(cfg.Relays.EmailURL),
		Log:    logger.Named("materializer"),
	}
	status := &services.StatusService{
		Orders: st,
		Users:  st,
		SMS:    notify.NewSMSRelay(cfg.Relays.SMSURL),
		Push:   notify.NewPushRelay(cfg.Relays.PushURL),
		Fees:   fees,
		Feed:   hub,
		Log:    logger.Named("status"),
	}
	refunds := &services.RefundService{
		Orders:    st,
		Users:     st,
		Processor: processor,
		Log:       logger.Named("refunds"),
	}
	reconciler := &services.Reconciler{Orders: st, Log: logger.Named("reconciler")}

	handler := &apihttp.Handler{
		Orders:        st,
		Materializer:  materializer,
		Status:        status,
		Refunds:       refunds,
		Reconciler:    reconciler,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Log:           logger.Named("http"),
	}

	server := apihttp.NewServer(cfg.Server.Addr, apihttp.NewRouter(handler, hub))

	go func() {
		logger.Info("api listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
