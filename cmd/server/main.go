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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/duadua/marketplace/internal/config"
	"github.com/duadua/marketplace/internal/es"
	"github.com/duadua/marketplace/internal/handlers"
	"github.com/duadua/marketplace/internal/httpserver"
	"github.com/duadua/marketplace/internal/logging"
	"github.com/duadua/marketplace/internal/mailer"
	"github.com/duadua/marketplace/internal/middleware/loggingmw"
	"github.com/duadua/marketplace/internal/mykafka"
	"github.com/duadua/marketplace/internal/paystack"
	"github.com/duadua/marketplace/internal/search"
	"github.com/duadua/marketplace/internal/tokens"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger := logging.New(cfg.LogLevel)

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	var producer *mykafka.Producer
	if cfg.KafkaAddress != "" {
		producer, err = mykafka.NewProducer([]string{cfg.KafkaAddress})
		if err != nil {
			log.Fatalf("kafka init: %v", err)
		}
		defer producer.Close()
	} else {
		logger.Warn("KAFKA_ADDRESS not set, events disabled")
	}

	var index *search.Index
	if cfg.ESURL != "" {
		esClient, err := es.NewClient(cfg)
		if err != nil {
			log.Fatalf("elasticsearch init: %v", err)
		}
		index = &search.Index{ES: esClient, Name: cfg.ESIndex}
	} else {
		logger.Warn("ES_URL not set, search falls back to the database")
	}

	mail := &mailer.Mailer{
		Sender: &mailer.SMTPSender{
			Addr:     cfg.SMTPAddress,
			Host:     cfg.SMTPHost,
			From:     cfg.FromEmail,
			Password: cfg.FromPassword,
		},
		Log: logger,
	}
	if cfg.SMTPAddress == "" {
		mail = &mailer.Mailer{Log: logger}
		logger.Warn("SMTP_ADDRESS not set, mail disabled")
	}

	gateway := paystack.NewClient(cfg.PaystackSecretKey)
	tokenManager := tokens.NewManager(cfg.JWTSecret, cfg.RefreshSecret)

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		DB:     db,
		Tokens: tokenManager,
		Auth: &handlers.AuthHandler{
			DB: db, Tokens: tokenManager, Mailer: mail,
			Producer: producer, FrontendURL: cfg.FrontendURL,
		},
		Products:   &handlers.ProductHandler{DB: db, Producer: producer, Search: index, Mailer: mail},
		Categories: &handlers.CategoryHandler{DB: db},
		Showcases:  &handlers.ShowcaseHandler{DB: db},
		Cart:       &handlers.CartHandler{DB: db, Producer: producer},
		Wishlist:   &handlers.WishlistHandler{DB: db},
		Orders: &handlers.OrderHandler{
			DB: db, Producer: producer, Mailer: mail,
			Gateway: gateway, PublicKey: cfg.PaystackPublicKey,
		},
		VendorOrder: &handlers.VendorOrderHandler{DB: db, Mailer: mail, Producer: producer},
		Vendors:     &handlers.VendorHandler{DB: db, Gateway: gateway},
		Settlements: &handlers.SettlementHandler{DB: db, Mailer: mail, Producer: producer},
		Txns:        &handlers.TransactionHandler{DB: db, Mailer: mail},
		Account:     &handlers.AccountHandler{DB: db},
		Admin:       &handlers.AdminHandler{DB: db},
		Search:      &handlers.SearchHandler{DB: db, Index: index},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}
}
