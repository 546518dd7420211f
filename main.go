package main

import (
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/proserve-app/marketplace-backend/config"
	"github.com/proserve-app/marketplace-backend/database"
	"github.com/proserve-app/marketplace-backend/middlewares"
	"github.com/proserve-app/marketplace-backend/models"
	"github.com/proserve-app/marketplace-backend/router"
	"github.com/proserve-app/marketplace-backend/services"
	"github.com/proserve-app/marketplace-backend/utils"
	"gorm.io/gorm"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading: %v", err)
	}

	utils.InitLogger()
}

func main() {
	db, err := config.InitDB()
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to connect to database: %v", err)
	}
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	autoMigrate(db)

	if err := services.GetStripeService().ValidateConfig(); err != nil {
		utils.ErrorLogger.Printf("Warning: Stripe configuration incomplete: %v", err)
	}

	rateLimiter := middlewares.NewRateLimiter(50, 1)

	// Background reconciliation: escrow releases and overdue closures.
	settings := config.NewSettings(db)
	notifier := services.NewNotificationService(db)
	escrow := services.NewEscrowService(db, settings, notifier)

	sweeper := services.NewReleaseSweeper(escrow, 15*time.Minute)
	sweeper.Start()
	defer sweeper.Stop()

	closureMonitor := services.NewClosureMonitor(db, notifier, 30*time.Minute)
	closureMonitor.Start()
	defer closureMonitor.Stop()

	r := router.SetupRouter(db)
	r.Use(rateLimiter.RateLimit())

	r.SetTrustedProxies([]string{"127.0.0.1", "localhost"})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	utils.InfoLogger.Printf("Listening on port %s", port)
	if err := r.Run(":" + port); err != nil {
		utils.ErrorLogger.Fatal(err)
	}
}

func autoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.User{},
		&models.Appointment{},
		&models.Payment{},
		&models.WalletBalance{},
		&models.WalletTransaction{},
		&models.CommissionDebt{},
		&models.DebtSettlement{},
		&models.StripeEventRecord{},
		&models.PlatformSetting{},
		&models.Notification{},
	)
	if err != nil {
		utils.ErrorLogger.Fatalf("Failed to AutoMigrate: %v", err)
	}
	utils.InfoLogger.Println("AutoMigrate completed.")

	if err := database.SeedDefaults(db); err != nil {
		utils.ErrorLogger.Printf("Error seeding platform settings: %v", err)
	}
}
