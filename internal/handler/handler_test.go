package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"base44/internal/middleware"
	"base44/internal/service"
	"base44/pkg/config"
	"base44/pkg/database"
	"base44/pkg/jwtutil"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testApp wires the full route table against an in-memory database
type testApp struct {
	e   *echo.Echo
	db  *gorm.DB
	jwt *jwtutil.Manager
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))

	jwtManager := jwtutil.NewManager(&config.JWTConfig{SigningKey: "test-key", ExpirationHours: 1})

	ingestor := service.NewCSVIngestor(1 << 20)
	suggester := service.NewStaticSuggester()
	engine := service.NewKPIEngine()
	evaluator := service.NewAlertEvaluator(service.NewZScoreDetector())
	forecaster := service.NewTrendForecaster()
	responder := service.NewKeywordResponder()

	authHandler := NewAuthHandler(db, jwtManager)
	tenantHandler := NewTenantHandler(db)
	connectorHandler := NewConnectorHandler(db, ingestor, suggester, service.NewHTTPSourceClient())
	kpiHandler := NewKPIHandler(db, engine, evaluator)
	alertHandler := NewAlertHandler(db)
	predictionHandler := NewPredictionHandler(db, forecaster)
	graphHandler := NewGraphHandler(db)
	dashboardHandler := NewDashboardHandler(db)
	assistantHandler := NewAssistantHandler(db, responder)

	e := echo.New()

	auth := e.Group("/api/v1/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	api := e.Group("/api/v1")
	api.Use(middleware.Auth(jwtManager))
	api.GET("/auth/me", authHandler.Me)

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

	return &testApp{e: e, db: db, jwt: jwtManager}
}

// registerTenant provisions a tenant with its owner and returns the tenant id
// and a valid token
func (a *testApp) registerTenant(t *testing.T, name, email string) (uint, string) {
	t.Helper()

	rec := a.request(t, http.MethodPost, "/api/v1/auth/register", "", "", echo.Map{
		"tenant_name": name,
		"email":       email,
		"password":    "s3cret!",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Tenant struct {
			ID uint `json:"id"`
		} `json:"tenant"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	login := a.request(t, http.MethodPost, "/api/v1/auth/login", "", "", echo.Map{
		"email":    email,
		"password": "s3cret!",
	})
	require.Equal(t, http.StatusOK, login.Code, login.Body.String())

	var loginResp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &loginResp))

	return resp.Tenant.ID, loginResp.Token
}

// request performs a JSON request. Empty token or tenant header omits it.
func (a *testApp) request(t *testing.T, method, path, token, tenantHeader string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	if tenantHeader != "" {
		req.Header.Set(middleware.TenantHeader, tenantHeader)
	}

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) upload(t *testing.T, path, token, tenantHeader, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set(echo.HeaderContentType, writer.FormDataContentType())
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	req.Header.Set(middleware.TenantHeader, tenantHeader)

	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func tenantHeaderOf(id uint) string {
	return fmt.Sprint(id)
}
