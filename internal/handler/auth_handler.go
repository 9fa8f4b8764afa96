package handler

import (
	"net/http"
	"time"

	"base44/internal/middleware"
	"base44/internal/model"
	"base44/pkg/jwtutil"
	"base44/pkg/logger"
	"base44/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthHandler serves registration, login and identity lookups. Registration
// creates a tenant and its owner together; there is no standalone signup.
type AuthHandler struct {
	db  *gorm.DB
	jwt *jwtutil.Manager
}

func NewAuthHandler(db *gorm.DB, jwt *jwtutil.Manager) *AuthHandler {
	return &AuthHandler{db: db, jwt: jwt}
}

// Register creates a tenant and its owner user in one transaction. A rejected
// registration leaves no rows behind.
func (h *AuthHandler) Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		TenantName string `json:"tenant_name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
		Plan       string `json:"plan,omitempty"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse registration request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.TenantName == "" || req.Email == "" || req.Password == "" {
		prometheus.RecordAuthError("incomplete_registration")
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "tenant_name, email and password are required"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var existing model.User
	if result := h.db.Where("email = ?", req.Email).First(&existing); result.Error == nil {
		log.Warn("Registration with existing email", zap.String("email", req.Email))
		prometheus.RecordAuthError("email_already_exists")
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "email already registered"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		prometheus.RecordAuthError("password_hash_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	plan := req.Plan
	if plan == "" {
		plan = "starter"
	}

	tenant := model.Tenant{Name: req.TenantName, Plan: plan, Active: true}
	user := model.User{Email: req.Email, Password: string(hashed), Role: "owner"}

	defer prometheus.TrackDBOperation("insert")(time.Now())
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}
		user.TenantID = tenant.ID
		return tx.Create(&user).Error
	})
	if err != nil {
		log.Error("Failed to create tenant and owner", zap.Error(err))
		prometheus.RecordAuthError("registration_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	log.Info("Tenant registered",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("tenant_name", tenant.Name),
		zap.String("owner_email", user.Email))

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "Tenant registered successfully",
		"tenant": map[string]interface{}{
			"id":   tenant.ID,
			"name": tenant.Name,
			"plan": tenant.Plan,
		},
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

// Login verifies credentials and issues a token carrying the user's tenant
func (h *AuthHandler) Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	if result := h.db.Where("email = ?", req.Email).First(&user); result.Error != nil {
		log.Warn("Login for unknown email", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	token, err := h.jwt.Generate(user.Email, user.ID, user.TenantID, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		prometheus.RecordAuthError("token_generation_failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User logged in",
		zap.String("email", user.Email),
		zap.Uint("tenant_id", user.TenantID))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"tenant_id": user.TenantID,
			"role":      user.Role,
		},
	})
}

// Me returns the authenticated user's profile and tenant
func (h *AuthHandler) Me(c echo.Context) error {
	log := logger.FromContext(c)

	var user model.User
	if result := h.db.Preload("Tenant").First(&user, middleware.UserID(c)); result.Error != nil {
		log.Error("Authenticated user missing from database", zap.Uint("user_id", middleware.UserID(c)))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": map[string]interface{}{
			"id":        user.ID,
			"email":     user.Email,
			"tenant_id": user.TenantID,
			"role":      user.Role,
		},
		"tenant": map[string]interface{}{
			"id":   user.Tenant.ID,
			"name": user.Tenant.Name,
			"plan": user.Tenant.Plan,
		},
	})
}
