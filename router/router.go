package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/proserve-app/marketplace-backend/config"
	"github.com/proserve-app/marketplace-backend/controllers"
	"github.com/proserve-app/marketplace-backend/middlewares"
	"github.com/proserve-app/marketplace-backend/services"
)

func SetupRouter(db *gorm.DB) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	// Service wiring
	settings := config.NewSettings(db)
	notifier := services.NewNotificationService(db)
	escrow := services.NewEscrowService(db, settings, notifier)
	payments := services.NewPaymentService(db, settings, escrow, notifier)
	cash := services.NewCashService(db, settings, payments, notifier)
	closures := services.NewClosureService(db, cash, escrow, notifier)
	verification := services.NewVerificationService(db, escrow)
	ledger := services.NewEventLedger(db)

	userCtrl := controllers.NewUserController(db)
	webhookCtrl := controllers.NewWebhookController(services.GetStripeService(), ledger, payments)
	cashCtrl := controllers.NewCashController(db, cash)
	closureCtrl := controllers.NewClosureController(closures)
	verificationCtrl := controllers.NewVerificationController(verification)
	earningsCtrl := controllers.NewEarningsController(db, escrow)
	notificationCtrl := controllers.NewNotificationController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Gateway callback: authenticated by signature, not by JWT.
	webhooks := r.Group("/webhooks")
	webhooks.Use(middlewares.NewWebhookRateLimiter())
	{
		webhooks.POST("/stripe", webhookCtrl.HandleStripeWebhook)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", userCtrl.GetProfile)
	auth.GET("/notifications", notificationCtrl.ListNotifications)
	auth.PATCH("/notifications/:id/read", notificationCtrl.MarkRead)

	// Cash settlement path. New cash actions are gated on having no overdue
	// closure.
	cashGroup := auth.Group("/appointments/:id/cash")
	cashGroup.Use(middlewares.CashClosureGate(db))
	{
		cashGroup.POST("/select", cashCtrl.SelectCash)
		cashGroup.POST("/collect", middlewares.RequireRole("provider"), cashCtrl.CollectCash)
		cashGroup.POST("/verify", middlewares.RequireRole("provider"), cashCtrl.VerifyCashCode)
	}

	// Closure protocol
	auth.POST("/appointments/:id/closure/provider", middlewares.RequireRole("provider"), closureCtrl.ReportProviderAction)
	auth.POST("/appointments/:id/closure/client", middlewares.RequireRole("client"), closureCtrl.ReportClientAction)
	auth.GET("/appointments/:id/closure", closureCtrl.Status)

	// Service verification
	auth.POST("/appointments/:id/verify-code", middlewares.RequireRole("provider"), verificationCtrl.VerifyServiceCode)
	auth.GET("/appointments/:id/verification-code", middlewares.RequireRole("client"), verificationCtrl.GetCode)

	// Provider earnings and wallet
	auth.GET("/wallet", middlewares.RequireRole("provider"), earningsCtrl.GetWallet)
	auth.GET("/wallet/transactions", middlewares.RequireRole("provider"), earningsCtrl.ListWalletTransactions)
	auth.GET("/providers/earnings", middlewares.RequireRole("provider"), earningsCtrl.GetEarnings)
	auth.GET("/debts", middlewares.RequireRole("provider"), cashCtrl.ListDebts)

	// Admin
	admin := auth.Group("/admin")
	admin.Use(middlewares.RequireRole("admin"))
	{
		admin.POST("/debts/:id/settle", cashCtrl.SettleDebt)
		admin.POST("/appointments/:id/closure/review", closureCtrl.MoveToReview)
	}

	// WebSocket endpoint with query-token auth
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("", controllers.HandleWebSocket)
	}

	return r
}
