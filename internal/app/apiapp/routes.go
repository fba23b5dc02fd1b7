package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/4kciclone/gato-comics-sub000/internal/config"
	adssvc "github.com/4kciclone/gato-comics-sub000/internal/services/adrewards"
	authsvc "github.com/4kciclone/gato-comics-sub000/internal/services/auth"
	catalogsvc "github.com/4kciclone/gato-comics-sub000/internal/services/catalog"
	entsvc "github.com/4kciclone/gato-comics-sub000/internal/services/entitlements"
	mediasvc "github.com/4kciclone/gato-comics-sub000/internal/services/media"
	paymentsvc "github.com/4kciclone/gato-comics-sub000/internal/services/payments"
	userssvc "github.com/4kciclone/gato-comics-sub000/internal/services/users"
	walletsvc "github.com/4kciclone/gato-comics-sub000/internal/services/wallet"
	"github.com/4kciclone/gato-comics-sub000/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService        *authsvc.Service
	UserService        *userssvc.Service
	EntitlementService *entsvc.Service
	CatalogService     *catalogsvc.Service
	WalletService      *walletsvc.Service
	AdRewardService    *adssvc.Service
	PaymentService     *paymentsvc.Service
	MediaService       *mediasvc.Service
	Logger             *zap.Logger
	Config             config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.UserService)
	readerHandler := handlers.NewReaderHandler(deps.EntitlementService, deps.CatalogService, deps.MediaService)
	unlockHandler := handlers.NewUnlockHandler(deps.EntitlementService)
	walletHandler := handlers.NewWalletHandler(deps.WalletService, deps.AdRewardService)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PaymentService)
	catalogHandler := handlers.NewCatalogHandler(deps.CatalogService)
	adminHandler := handlers.NewAdminHandler(deps.WalletService, deps.CatalogService, deps.MediaService)

	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	optionalAuthMW := OptionalAuthMiddleware(deps.AuthService, deps.Logger)
	adminRoleMW := RequireRole("ADMIN")

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.With(authMW).Post("/logout", authHandler.Logout)
		})

		r.With(authMW).Get("/me", authHandler.Me)

		r.Get("/works/{id}", catalogHandler.Work)
		r.Get("/chapters/{id}", readerHandler.Chapter)
		r.With(optionalAuthMW).Get("/chapters/{id}/access", readerHandler.Access)
		r.With(optionalAuthMW).Get("/chapters/{id}/pages", readerHandler.Pages)
		r.With(authMW).Post("/chapters/{id}/unlock", unlockHandler.Unlock)

		r.With(authMW).Get("/wallet", walletHandler.Balances)
		r.With(authMW).Get("/wallet/ledger", walletHandler.Ledger)
		r.With(authMW).Get("/ads/status", walletHandler.AdRewardStatus)
		r.With(authMW).Post("/ads/reward", walletHandler.ClaimAdReward)

		r.With(authMW).Post("/purchase/create", purchaseHandler.Create)
		r.Post("/purchase/webhook", purchaseHandler.Webhook)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authMW, adminRoleMW)
		r.Post("/users/{id}/balance", adminHandler.AdjustBalance)
		r.Get("/users/{id}/ledger", adminHandler.UserLedger)
		r.Get("/users/{id}/reconcile", adminHandler.Reconcile)
		r.Post("/works/{id}/chapters", adminHandler.CreateChapter)
		r.Patch("/chapters/{id}/pricing", adminHandler.UpdatePricing)
		r.Post("/chapters/{id}/pages", adminHandler.UploadPage)
	})
}
