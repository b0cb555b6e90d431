package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	"storefront/internal/infra/events"
	"storefront/internal/infra/momo"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/server"
	"storefront/internal/usecase"
	auth "storefront/internal/usecase/auth_usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	//.envは任意（本番は環境変数で渡す）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	//DB接続
	gormDB, err := db.Connect(cfg, log)
	if err != nil {
		return err
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	//Repository（GORM実装）
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	paymentRepo := infraRepo.NewPaymentGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//注文ステータスのキャッシュ（REDIS_ADDRが無ければ使わない）
	statusCache := usecase.NopStatusCache()
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr)
		defer func() { _ = rdb.Close() }()
		statusCache = cache.NewOrderStatusRedis(rdb)
		log.Info("order status cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	//注文イベント（KAFKA_BROKERSが無ければ発行しない）
	publisher := usecase.NopPublisher()
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer func() { _ = kp.Close() }()
		publisher = kp
		log.Info("order events enabled", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}

	//決済プロバイダ
	gateway := momo.NewClient(cfg.MoMo, log)
	payer := usecase.NewPaymentInitiator(paymentRepo, gateway, cfg.MoMo.Currency, cfg.MoMo.Timeout, log)

	//Usecase
	clock := auth.SystemClock{}
	registerUC := auth.NewRegisterUserUsecase(userRepo, auth.NewBcryptPasswordHasher(12), clock)
	loginUC := auth.NewLoginUsecase(userRepo, auth.NewBcryptPasswordVerifier(), auth.NewJWTIssuer(cfg.JWTSecret, cfg.AccessTokenTTL), clock)
	forceLogoutUC := auth.NewForceLogoutUsecase(userRepo)
	productUC := usecase.NewProductUsecase(productRepo, txm)
	orderUC := usecase.NewOrderUsecase(txm, payer, publisher, statusCache, log)
	webhookUC := usecase.NewPaymentWebhookUsecase(txm, publisher, statusCache, log)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, publisher, statusCache, log)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//IPごとのレート制限
	limiter := middleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)

	srv := server.New(cfg, log)
	srv.RegisterRoutes(server.Handlers{
		Auth:          handler.NewAuthHandler(registerUC, loginUC, limiter),
		Products:      handler.NewProductHandler(productUC),
		Orders:        handler.NewOrderHandler(orderUC, limiter),
		Webhook:       handler.NewPaymentWebhookHandler(webhookUC, cfg.MoMo.WebhookSecret, limiter),
		AdminProducts: handler.NewAdminProductHandler(productUC),
		AdminOrders:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminUsers:    handler.NewAdminUserHandler(cfg, userRepo, forceLogoutUC),
		AdminAudit:    handler.NewAdminAuditLogHandler(auditUC),
	}, userRepo)

	return srv.Run(ctx)
}
