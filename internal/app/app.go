package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"afiliados_backend/internal/config"
	"afiliados_backend/internal/email"
	"afiliados_backend/internal/handlers"
	"afiliados_backend/internal/logger"
	"afiliados_backend/internal/middleware"
	"afiliados_backend/internal/models"
	"afiliados_backend/internal/repositories"
	"afiliados_backend/internal/routes"
	"afiliados_backend/internal/services"
	"afiliados_backend/internal/services/payments"
	"afiliados_backend/internal/validator"
	"afiliados_backend/internal/workers"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func Run() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger.Init(cfg.Server.Env)
	logger.Info("Logger initialized", "env", cfg.Server.Env)

	logger.Info("Connecting to database...")
	// TranslateError maps driver duplicate-key failures to
	// gorm.ErrDuplicatedKey, which the account repository relies on.
	gormDB, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Fatal("Failed to connect to GORM", "error", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("Failed to get *sql.DB from GORM", "error", err)
	}
	if err = sqlDB.Ping(); err != nil {
		logger.Fatal("Database unavailable", "error", err)
	}
	logger.Info("Database connected")

	if err := migrate(gormDB); err != nil {
		logger.Fatal("Failed to run migrations", "error", err)
	}
	if err := seedPlans(gormDB, cfg); err != nil {
		logger.Fatal("Failed to seed plan catalog", "error", err)
	}
	if err := seedFirstAdmin(gormDB, cfg); err != nil {
		logger.Fatal("Failed to seed first admin user", "error", err)
	}

	serviceContainer := initializeServices(cfg, gormDB)

	ginRouter := SetupRouter(cfg, gormDB, serviceContainer)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	billingWorker := workers.NewBillingWorker(cfg, serviceContainer.SubscriptionService, serviceContainer.ReconciliationService)
	billingWorker.Start(workerCtx)

	address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info(fmt.Sprintf("Server starting on %s", address))
	if err := ginRouter.Run(address); err != nil {
		logger.Fatal("Server startup error", "error", err)
	}
}

func SetupRouter(cfg *config.Config, gormDB *gorm.DB, serviceContainer *services.ServiceContainer) *gin.Engine {
	appHandlers := initializeHandlers(serviceContainer)

	ginRouter := initializeGinRouter(gormDB)
	routes.RegisterRoutes(ginRouter, appHandlers)

	return ginRouter
}

func initializeServices(cfg *config.Config, gormDB *gorm.DB) *services.ServiceContainer {
	var emailService email.Provider
	if cfg.Email.Enabled {
		emailService = email.NewSMTPProvider(cfg)
	} else {
		logger.Warn("Email delivery disabled; notifications are dropped")
		emailService = email.NoopProvider{}
	}

	accountRepo := repositories.NewAccountRepository(gormDB)
	subscriptionRepo := repositories.NewSubscriptionRepository(gormDB)
	paymentRepo := repositories.NewPaymentRepository(gormDB)
	commissionRepo := repositories.NewCommissionRepository(gormDB)

	paypalService := payments.NewPayPalService(cfg)
	culqiService := payments.NewCulqiService(cfg)

	referralService := services.NewReferralService(accountRepo)
	subscriptionService := services.NewSubscriptionService(subscriptionRepo)
	commissionService := services.NewCommissionService(
		referralService,
		subscriptionService,
		commissionRepo,
		accountRepo,
		emailService,
		cfg.Billing.Currency,
	)
	reconciliationService := services.NewReconciliationService(
		cfg,
		paymentRepo,
		subscriptionRepo,
		accountRepo,
		subscriptionService,
		commissionService,
		paypalService,
		culqiService,
		emailService,
	)
	authService := services.NewAuthService(accountRepo, referralService, subscriptionService)
	dashboardService := services.NewDashboardService(accountRepo, commissionRepo, referralService, subscriptionService)
	adminService := services.NewAdminService(accountRepo, subscriptionService)

	return &services.ServiceContainer{
		AuthService:           authService,
		ReferralService:       referralService,
		SubscriptionService:   subscriptionService,
		CommissionService:     commissionService,
		ReconciliationService: reconciliationService,
		DashboardService:      dashboardService,
		AdminService:          adminService,
		EmailService:          emailService,
	}
}

func initializeHandlers(services *services.ServiceContainer) *handlers.AppHandlers {
	customValidator := validator.New()
	baseHandler := handlers.NewBaseHandler(customValidator)

	return &handlers.AppHandlers{
		AuthHandler:         handlers.NewAuthHandler(baseHandler, services.AuthService),
		AccountHandler:      handlers.NewAccountHandler(baseHandler, services.AuthService, services.ReferralService),
		DashboardHandler:    handlers.NewDashboardHandler(baseHandler, services.DashboardService),
		SubscriptionHandler: handlers.NewSubscriptionHandler(baseHandler, services.SubscriptionService),
		PaymentHandler:      handlers.NewPaymentHandler(baseHandler, services.ReconciliationService),
		AdminHandler:        handlers.NewAdminHandler(baseHandler, services.AdminService, services.ReconciliationService),
	}
}

func initializeGinRouter(db *gorm.DB) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DBMiddleware(db))
	return router
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.Plan{},
		&models.Subscription{},
		&models.PaymentEvent{},
		&models.CommissionEvent{},
	)
}

// seedPlans upserts the plan catalog into the plans table. The static
// catalog is the source of truth; the rows exist so the public plan listing
// and admin tooling can query them.
func seedPlans(db *gorm.DB, cfg *config.Config) error {
	for i, spec := range models.PlanSpecs() {
		features, err := json.Marshal(spec.Features)
		if err != nil {
			return err
		}

		var existing models.Plan
		result := db.Where("code = ?", spec.Code).First(&existing)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			row := models.Plan{
				BaseModel:     models.BaseModel{ID: uuid.NewString()},
				Code:          spec.Code,
				Name:          spec.Name,
				Price:         spec.Price,
				Currency:      cfg.Billing.Currency,
				UnlockedDepth: spec.UnlockedDepth,
				Features:      datatypes.JSON(features),
				IsActive:      true,
				SortOrder:     i,
			}
			if err := db.Create(&row).Error; err != nil {
				return err
			}
			continue
		}

		existing.Name = spec.Name
		existing.Price = spec.Price
		existing.Currency = cfg.Billing.Currency
		existing.UnlockedDepth = spec.UnlockedDepth
		existing.Features = datatypes.JSON(features)
		existing.SortOrder = i
		if err := db.Save(&existing).Error; err != nil {
			return err
		}
	}
	return nil
}

func seedFirstAdmin(db *gorm.DB, cfg *config.Config) error {
	adminEmail := cfg.FirstAdminEmail
	adminPassword := cfg.FirstAdminPassword

	if adminEmail == "" || adminPassword == "" {
		logger.Warn("FIRST_ADMIN_EMAIL or FIRST_ADMIN_PASSWORD is not set. Skipping admin seeding.")
		return nil
	}

	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer tx.Rollback()

	var admin models.Account
	result := tx.Where("email = ?", adminEmail).First(&admin)
	if result.Error == nil {
		logger.Info("Admin user already exists. Skipping creation.", "email", adminEmail)
		return nil
	}
	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return result.Error
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	admin = models.Account{
		BaseModel:    models.BaseModel{ID: uuid.NewString()},
		Email:        adminEmail,
		FullName:     "Administrador",
		PasswordHash: string(hash),
		Role:         models.UserRoleAdmin,
		ReferralCode: "ADM_" + strings.ToUpper(uuid.NewString()[:6]),
	}
	if err := tx.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit admin seeding: %w", err)
	}

	logger.Info("First admin user created", "email", adminEmail)
	return nil
}
