package main

import (
	"log"
	"os"
	"strconv"

	_ "lendflow/api/swagger" // swagger docs
	"lendflow/internal/cache"
	"lendflow/internal/database"
	"lendflow/internal/handler"
	"lendflow/internal/notifier"
	"lendflow/internal/repository"
	"lendflow/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Lendflow Origination API
// @version         1.0
// @description     Loan origination workflow: applications, query threads, commission ledger and payouts.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	// Read-side cache: Redis when configured, in-process memory otherwise.
	var c cache.Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		redisDB, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
		redisCache, err := cache.OpenRedis(addr, redisDB)
		if err != nil {
			log.Fatalf("Redis connection failed: %v", err)
		}
		c = redisCache
		log.Println("Connected to Redis successfully.")
	} else {
		c = cache.NewMemory()
		log.Println("REDIS_ADDR not set, using in-memory cache.")
	}

	// Email notifications: SMTP when configured, log-and-drop otherwise.
	var mailer notifier.Notifier
	if host := os.Getenv("SMTP_HOST"); host != "" {
		smtpPort, _ := strconv.Atoi(os.Getenv("SMTP_PORT"))
		mailer = notifier.NewSMTP(notifier.SMTPConfig{
			Host:     host,
			Port:     smtpPort,
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		})
	} else {
		mailer = notifier.NewNoop()
		log.Println("SMTP_HOST not set, notifications will be logged and dropped.")
	}

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	clientRepo := repository.NewClientRepository(db)
	nbfcRepo := repository.NewNbfcRepository(db)
	productRepo := repository.NewProductRepository(db)
	appRepo := repository.NewApplicationRepository(db)
	queryRepo := repository.NewQueryRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	userService := service.NewUserService(userRepo)
	clientService := service.NewClientService(clientRepo, nbfcRepo, userRepo, txManager)
	productService := service.NewProductService(productRepo, c)
	queryService := service.NewQueryService(queryRepo, appRepo, ledgerRepo, auditRepo, txManager)
	ledgerService := service.NewLedgerService(ledgerRepo, payoutRepo, clientRepo, queryService, auditRepo, txManager, mailer)
	appService := service.NewApplicationService(appRepo, clientRepo, nbfcRepo, productService, queryRepo, queryService, ledgerService, auditRepo, txManager, mailer)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(userService)
	registryHandler := handler.NewRegistryHandler(clientService, productService)
	appHandler := handler.NewApplicationHandler(appService)
	queryHandler := handler.NewQueryHandler(queryService)
	ledgerHandler := handler.NewLedgerHandler(ledgerService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// Register API Routes
	authHandler.RegisterRoutes(router.Group(""))
	registryHandler.RegisterRoutes(router.Group(""))
	appHandler.RegisterRoutes(router.Group(""))
	queryHandler.RegisterRoutes(router.Group(""))
	ledgerHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
