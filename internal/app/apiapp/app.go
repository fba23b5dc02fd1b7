package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/minio/minio-go/v7"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/4kciclone/gato-comics-sub000/internal/config"
	s3infra "github.com/4kciclone/gato-comics-sub000/internal/infra/s3"
	"github.com/4kciclone/gato-comics-sub000/internal/jobs/cleanup"
	pgrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/postgres"
	redrepo "github.com/4kciclone/gato-comics-sub000/internal/repo/redis"
	adssvc "github.com/4kciclone/gato-comics-sub000/internal/services/adrewards"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	catalogsvc "github.com/4kciclone/gato-comics-sub000/internal/services/catalog"
	entsvc "github.com/4kciclone/gato-comics-sub000/internal/services/entitlements"
	mediasvc "github.com/4kciclone/gato-comics-sub000/internal/services/media"
	paymentsvc "github.com/4kciclone/gato-comics-sub000/internal/services/payments"
	userssvc "github.com/4kciclone/gato-comics-sub000/internal/services/users"
	walletsvc "github.com/4kciclone/gato-comics-sub000/internal/services/wallet"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	s3         *minio.Client
	httpRouter http.Handler
	cleanupJob *cleanup.Job
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	economyLoc, err := cfg.Economy.Location()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessionRepo := redrepo.NewSessionRepo(redisClient)
	rateRepo := redrepo.NewRateRepo(redisClient)

	txRunner := pgrepo.PoolRunner(pool)

	userRepo := pgrepo.NewUserRepo(pool)
	walletRepo := pgrepo.NewWalletRepo(pool)
	ledgerRepo := pgrepo.NewLedgerRepo(pool)
	unlockRepo := pgrepo.NewUnlockRepo(pool)
	chapterRepo := pgrepo.NewChapterRepo(pool)
	purchaseRepo := pgrepo.NewPurchaseRepo(pool)

	userService := userssvc.NewService(txRunner, userRepo, walletRepo, ledgerRepo, userssvc.Config{
		SignupBonus: cfg.Economy.SignupBonus,
	})
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, sessionRepo, userService, cfg.Auth.RefreshTTL)

	entitlementService := entsvc.NewService(txRunner, chapterRepo, walletRepo, unlockRepo, ledgerRepo, entsvc.Config{
		RentalCostLite: cfg.Economy.RentalCostLite,
		RentalDuration: cfg.Economy.RentalDuration,
	})
	adRewardService := adssvc.NewService(txRunner, walletRepo, ledgerRepo, rateRepo, adssvc.Config{
		RewardLite:  cfg.Economy.AdRewardLite,
		DailyCap:    cfg.Economy.AdDailyCap,
		Location:    economyLoc,
		FloodWindow: cfg.Economy.AdFloodWindow,
		FloodMax:    cfg.Economy.AdFloodMax,
	})
	walletService := walletsvc.NewService(txRunner, walletRepo, ledgerRepo)
	paymentService := paymentsvc.NewService(txRunner, purchaseRepo, walletRepo, ledgerRepo)
	catalogService := catalogsvc.NewService(chapterRepo)

	var s3Client *minio.Client
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, continuing in degraded mode", zap.Error(err))
	} else {
		s3Client = c
	}

	mediaStorage := mediasvc.NewS3Storage(s3Client, cfg.S3.Bucket)
	mediaService := mediasvc.NewService(chapterRepo, mediaStorage)

	RegisterRoutes(r, Dependencies{
		AuthService:        authService,
		UserService:        userService,
		EntitlementService: entitlementService,
		CatalogService:     catalogService,
		WalletService:      walletService,
		AdRewardService:    adRewardService,
		PaymentService:     paymentService,
		MediaService:       mediaService,
		Logger:             log,
		Config:             cfg,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     server,
		postgres:   pool,
		redis:      redisClient,
		s3:         s3Client,
		httpRouter: r,
		cleanupJob: cleanup.NewRentalCleanupJob(unlockRepo, cfg.Cleanup.RentalRetention, log),
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// RunCleanupLoop runs the rental pruning job until the context is canceled.
func (a *App) RunCleanupLoop(ctx context.Context) error {
	if a.cleanupJob == nil {
		return nil
	}

	interval := a.cfg.Cleanup.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	if err := a.cleanupJob.Run(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.cleanupJob.Run(ctx); err != nil {
				return err
			}
		}
	}
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
