package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/hash"
	"github.com/matrixbuild/materials_shop/internal/logging"
	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/mykafka"
	"github.com/matrixbuild/materials_shop/internal/service"
)

type AuthHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	AdminKey  string
	Producer  *mykafka.Producer
}

func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("login_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var user models.User
	err := h.DB.WithContext(ctx).Where("email = ?", strings.ToLower(req.Email)).First(&user).Error
	if err != nil || !hash.CheckPassword(user.Password, req.Password) {
		l.Warn("login_failed", "status", 401, "reason", "invalid credentials")
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	token, err := service.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		l.Error("login_failed", "status", 500, "reason", "cannot sign token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create token")
	}

	publishEvent(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":      "user_logged_in",
		"user_id":   user.ID,
		"user_name": user.UserName,
	})

	l.Info("login_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"access_token": token,
		"role":         user.Role,
		"id":           user.ID,
	})
}

// CreateAdmin provisions an admin account behind a shared secret. Intended
// for one-time bootstrap only; the key comparison is constant-time.
func (h *AuthHandler) CreateAdmin(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.create_admin")

	var req struct {
		AdminKey string `json:"admin_key"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_admin_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if h.AdminKey == "" ||
		subtle.ConstantTimeCompare([]byte(req.AdminKey), []byte(h.AdminKey)) != 1 {
		l.Warn("create_admin_failed", "status", 403, "reason", "bad admin key")
		return echo.NewHTTPError(http.StatusForbidden, "Unauthorized")
	}
	if req.Username == "" || req.Password == "" {
		l.Warn("create_admin_failed", "status", 422, "reason", "missing fields")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "username and password are required")
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("create_admin_failed", "status", 500, "reason", "cannot hash password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot hash password")
	}

	slug := strings.ToLower(strings.ReplaceAll(req.Username, " ", "."))
	admin := models.User{
		UserName:    req.Username,
		Email:       fmt.Sprintf("%s@admin.matrixbuild.local", slug),
		Password:    hashed,
		Role:        models.RoleAdmin,
		PhoneNumber: "0000000000",
	}
	if err := h.DB.WithContext(ctx).Create(&admin).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			l.Warn("create_admin_failed", "status", 422, "reason", "admin already exists")
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "admin already exists")
		}
		l.Error("create_admin_failed", "status", 500, "error", err)
		return persistError(err)
	}

	l.Info("create_admin_success", "user_id", admin.ID)
	return c.JSON(http.StatusCreated, echo.Map{"message": "Admin created successfully"})
}
