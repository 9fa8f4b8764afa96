package main

import (
	"base44/internal/handler"
	"base44/internal/middleware"
	"base44/internal/service"
	"base44/pkg/config"
	"base44/pkg/database"
	"base44/pkg/jwtutil"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting Base44 backend...", zap.String("environment", cfg.Server.Env))

	// Connect database and run migrations
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Token manager
	jwtManager := jwtutil.NewManager(&cfg.JWT)

	// Domain services
	ingestor := service.NewCSVIngestor(cfg.Upload.MaxBytes)
	suggester := service.NewStaticSuggester()
	sourceClient := service.NewHTTPSourceClient()
	engine := service.NewKPIEngine()
	evaluator := service.NewAlertEvaluator(service.NewZScoreDetector())
	forecaster := service.NewTrendForecaster()
	responder := service.NewKeywordResponder()

	// Handlers
	authHandler := handler.NewAuthHandler(db, jwtManager)
	tenantHandler := handler.NewTenantHandler(db)
	connectorHandler := handler.NewConnectorHandler(db, ingestor, suggester, sourceClient)
	kpiHandler := handler.NewKPIHandler(db, engine, evaluator)
	alertHandler := handler.NewAlertHandler(db)
	predictionHandler := handler.NewPredictionHandler(db, forecaster)
	graphHandler := handler.NewGraphHandler(db)
	dashboardHandler := handler.NewDashboardHandler(db)
	assistantHandler := handler.NewAssistantHandler(db, responder)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/api/v1/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// API routes - all require authentication
	api := e.Group("/api/v1")
	api.Use(middleware.Auth(jwtManager))

	api.GET("/auth/me", authHandler.Me)

	// Tenant-scoped operations - the X-Tenant-ID header must match the caller
	scoped := api.Group("")
	scoped.Use(middleware.RequireTenant)

	scoped.GET("/tenants/:id", tenantHandler.Get)

	connectors := scoped.Group("/connectors")
	connectors.POST("", connectorHandler.Create)
	connectors.GET("", connectorHandler.List)
	connectors.GET("/:id", connectorHandler.Get)
	connectors.POST("/:id/upload", connectorHandler.Upload)
	connectors.POST("/:id/sync", connectorHandler.Sync)
	connectors.GET("/:id/mapping", connectorHandler.Mapping)

	scoped.POST("/ingests/:id/normalize", connectorHandler.Normalize)

	kpis := scoped.Group("/kpis")
	kpis.POST("", kpiHandler.Create)
	kpis.GET("", kpiHandler.List)
	kpis.POST("/:id/evaluate", kpiHandler.Evaluate)
	kpis.GET("/:id/values", kpiHandler.Values)

	alerts := scoped.Group("/alerts")
	alerts.GET("", alertHandler.List)
	alerts.GET("/:id", alertHandler.Get)
	alerts.POST("/:id/ack", alertHandler.Acknowledge)
	alerts.POST("/:id/resolve", alertHandler.Resolve)

	predictions := scoped.Group("/predictions")
	predictions.POST("", predictionHandler.Run)
	predictions.GET("", predictionHandler.List)
	predictions.GET("/:id", predictionHandler.Get)

	graph := scoped.Group("/graph")
	graph.POST("/nodes", graphHandler.CreateNode)
	graph.GET("/nodes", graphHandler.ListNodes)
	graph.GET("/nodes/:id/neighbors", graphHandler.Neighbors)
	graph.POST("/edges", graphHandler.CreateEdge)
	graph.GET("/edges", graphHandler.ListEdges)
	graph.GET("/statistics", graphHandler.Statistics)

	scoped.GET("/dashboard", dashboardHandler.Overview)
	scoped.POST("/ask", assistantHandler.Ask)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
