package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/azrion/storefront/internal/config"
	"github.com/azrion/storefront/internal/handler"
	"github.com/azrion/storefront/internal/middleware"
	"github.com/azrion/storefront/internal/payment"
	"github.com/azrion/storefront/internal/pricing"
	"github.com/azrion/storefront/internal/repository"
	"github.com/azrion/storefront/internal/service"
	"github.com/azrion/storefront/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Payment gateway
	gateway := payment.NewClient(cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.BaseURL)

	rates := pricing.ShippingRates{
		FlatFee:       decimal.NewFromInt(cfg.Checkout.FlatShippingFee),
		FreeThreshold: decimal.NewFromInt(cfg.Checkout.FreeShippingThreshold),
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool)
	categoryRepo := repository.NewCategoryRepository(dbPool)
	productRepo := repository.NewProductRepository(dbPool)
	cartRepo := repository.NewCartRepository(dbPool)
	couponRepo := repository.NewCouponRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	walletRepo := repository.NewWalletRepository(dbPool)
	returnRepo := repository.NewReturnRepository(dbPool)
	referralRepo := repository.NewReferralRepository(dbPool)

	// Services
	authSvc := service.NewAuthService(userRepo, referralRepo, couponRepo, cfg.JWT.Secret, cfg.JWT.Expiration, log)
	catalogSvc := service.NewCatalogService(productRepo, categoryRepo, redisClient)
	cartSvc := service.NewCartService(cartRepo, productRepo, couponRepo, rates, cfg.Checkout.MaxQuantityPerLine)
	checkoutSvc := service.NewCheckoutService(
		orderRepo, cartRepo, productRepo, couponRepo, walletRepo,
		gateway, amqpCh, rates, cfg.Payment.KeyID, cfg.Payment.Currency, log,
	)
	orderSvc := service.NewOrderService(orderRepo, productRepo, walletRepo, returnRepo, cfg.Checkout.ReturnWindow, log)
	couponSvc := service.NewCouponService(couponRepo, referralRepo)
	walletSvc := service.NewWalletService(walletRepo, orderRepo)

	// Handlers
	authH := handler.NewAuthHandler(authSvc)
	catalogH := handler.NewCatalogHandler(catalogSvc)
	cartH := handler.NewCartHandler(cartSvc)
	checkoutH := handler.NewCheckoutHandler(checkoutSvc)
	orderH := handler.NewOrderHandler(orderSvc)
	couponH := handler.NewCouponHandler(couponSvc)
	walletH := handler.NewWalletHandler(walletSvc)
	healthH := handler.NewHealthHandler(dbPool, redisClient, amqpConn)

	// Worker
	notifyWorker := worker.NewNotifyWorker(amqpCh, orderRepo, redisClient, worker.NewLogNotifier(log), log)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)

	authRequired := middleware.AuthMiddleware(cfg.JWT.Secret)

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)

		categories := v1.Group("/categories")
		categories.GET("", catalogH.ListCategories)

		products := v1.Group("/products")
		products.GET("", catalogH.ListProducts)
		products.GET("/:id", catalogH.GetProduct)

		cart := v1.Group("/cart", authRequired)
		cart.GET("", cartH.GetCart)
		cart.POST("/items", cartH.AddItem)
		cart.PUT("/items/:id", cartH.UpdateItem)
		cart.DELETE("/items/:id", cartH.DeleteItem)
		cart.POST("/coupon", cartH.ApplyCoupon)
		cart.DELETE("/coupon", cartH.RemoveCoupon)
		cart.GET("/coupons", cartH.AvailableCoupons)

		orders := v1.Group("/orders", authRequired)
		orders.POST("", checkoutH.PlaceOrder)
		orders.GET("", orderH.ListOrders)
		orders.GET("/:id", orderH.GetOrder)
		orders.POST("/:id/cancel", orderH.CancelOrder)
		orders.POST("/:id/return", orderH.RequestReturn)
		orders.POST("/:id/payment", checkoutH.CreatePayment)
		orders.POST("/:id/payment/verify", checkoutH.VerifyPayment)

		items := v1.Group("/order-items", authRequired)
		items.POST("/:id/cancel", orderH.CancelItem)
		items.POST("/:id/return", orderH.RequestItemReturn)

		wallet := v1.Group("/wallet", authRequired)
		wallet.GET("", walletH.GetWallet)
		wallet.GET("/transactions", walletH.Transactions)

		referrals := v1.Group("/referrals", authRequired)
		referrals.GET("/rewards", couponH.MyRewards)

		admin := v1.Group("/admin", authRequired, middleware.AdminOnly())
		admin.POST("/categories", catalogH.CreateCategory)
		admin.PUT("/categories/:id", catalogH.UpdateCategory)
		admin.DELETE("/categories/:id", catalogH.DeleteCategory)
		admin.POST("/categories/:id/offers", catalogH.CreateCategoryOffer)
		admin.PUT("/category-offers/:id", catalogH.UpdateCategoryOffer)

		admin.POST("/products", catalogH.CreateProduct)
		admin.PUT("/products/:id", catalogH.UpdateProduct)
		admin.DELETE("/products/:id", catalogH.DeleteProduct)
		admin.POST("/products/:id/variants", catalogH.CreateVariant)
		admin.PUT("/variants/:id", catalogH.UpdateVariant)
		admin.POST("/variants/:id/stock", catalogH.AdjustStock)

		admin.POST("/coupons", couponH.Create)
		admin.PUT("/coupons/:id", couponH.Update)
		admin.GET("/coupons", couponH.List)
		admin.POST("/referral-offers", couponH.CreateReferralOffer)
		admin.PUT("/referral-offers/:id", couponH.UpdateReferralOffer)

		admin.GET("/orders", orderH.ListAllOrders)
		admin.PUT("/orders/:id/status", orderH.UpdateStatus)
		admin.GET("/returns", orderH.ListOrderReturns)
		admin.GET("/item-returns", orderH.ListItemReturns)
		admin.POST("/returns/:id/process", orderH.ProcessOrderReturn)
		admin.POST("/item-returns/:id/process", orderH.ProcessItemReturn)
		admin.POST("/wallets/:id/adjust", walletH.AdjustWallet)
	}

	if err := notifyWorker.Start(ctx); err != nil {
		log.Error("start notify worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	notifyWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
