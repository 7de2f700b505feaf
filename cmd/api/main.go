package main

import (
	"os"

	_ "shopauth/api/swagger" // swagger docs
	"shopauth/internal/database"
	"shopauth/internal/handler"
	"shopauth/internal/middleware"
	"shopauth/internal/repository"
	"shopauth/internal/service"
	"shopauth/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Multi-Tenant Identity & RBAC API
// @version         1.0
// @description     Tenant-scoped identity, role and permission management for e-commerce storefronts.
// @host            localhost:8080
// @BasePath        /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		logrus.Info("No configs/.env file found or error loading it")
	}

	db, err := database.NewConnection(databaseDSN())
	if err != nil {
		logrus.WithError(err).Fatal("Database connection failed")
	}
	logrus.Info("Connected to PostgreSQL successfully")

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	permRepo := repository.NewPermissionRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	permService := service.NewPermissionService(permRepo, roleRepo, txManager)
	rbacService := service.NewRbacService(roleRepo, permService, txManager)
	authService := service.NewAuthService(userRepo, tokenRepo, rbacService, txManager)
	tenantService := service.NewTenantService(tenantRepo, rbacService)
	auditService := service.NewAuditService(auditRepo)

	middleware.InitTenantMiddleware(tenantRepo)
	middleware.InitAccessControl(permService, rbacService)

	// Initialize Handlers
	authHandler := handler.NewAuthHandler(authService, rbacService, permService, auditService)
	rbacHandler := handler.NewRbacHandler(rbacService, permService, auditService, wsHub)
	permHandler := handler.NewPermissionHandler(permService, auditService, wsHub)
	tenantHandler := handler.NewTenantHandler(tenantService, rbacService, auditService, wsHub)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = corsOrigins()
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Tenant-Slug"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	baseHost := os.Getenv("BASE_HOST")

	// WebSocket endpoint: tenant-scoped RBAC event feed
	router.GET("/ws", middleware.ResolveTenant(baseHost), func(c *gin.Context) {
		tenant, ok := middleware.CurrentTenant(c)
		if !ok {
			c.AbortWithStatus(404)
			return
		}
		websocket.ServeWs(wsHub, c, authService, tenant.ID)
	})

	// API routing: everything under /api is tenant-resolved; auth endpoints
	// are public, the rest require a valid access token.
	api := router.Group("/api")
	api.Use(middleware.ResolveTenant(baseHost))

	authHandler.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(middleware.Authenticate(authService))
	rbacHandler.RegisterRoutes(protected)
	permHandler.RegisterRoutes(protected)
	tenantHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logrus.Infof("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		logrus.WithError(err).Fatal("Server failed")
	}
}

func databaseDSN() string {
	dbHost := envOr("DB_HOST", "localhost")
	dbPort := envOr("DB_PORT", "5432")
	dbUser := envOr("DB_USER", "postgres")
	dbPassword := envOr("DB_PASSWORD", "postgres")
	dbName := envOr("DB_NAME", "postgres")
	dbSslMode := envOr("DB_SSLMODE", "disable")

	return "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode
}

func corsOrigins() []string {
	if raw := os.Getenv("CORS_ORIGINS"); raw != "" {
		return []string{raw}
	}
	return []string{"http://localhost:5173", "http://127.0.0.1:5173"}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
