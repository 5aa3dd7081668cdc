package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/hash"
	"github.com/matrixbuild/materials_shop/internal/logging"
	"github.com/matrixbuild/materials_shop/internal/middleware/auth"
	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/mykafka"
	"github.com/matrixbuild/materials_shop/internal/service"
)

type UserHandler struct {
	DB        *gorm.DB
	JWTSecret []byte
	Producer  *mykafka.Producer
}

func (h *UserHandler) GetUsers(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get_users")

	var users []models.User
	if err := h.DB.WithContext(ctx).Find(&users).Error; err != nil {
		l.Error("get_users_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser registers an account and returns it together with a fresh
// access token, so registration doubles as login.
func (h *UserHandler) CreateUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.create_user")

	var req struct {
		UserName    string `json:"user_name"`
		Email       string `json:"email"`
		Password    string `json:"password"`
		PhoneNumber string `json:"phone_number"`
		Role        string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_user_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	var existing models.User
	err := h.DB.WithContext(ctx).Where("email = ?", strings.ToLower(req.Email)).First(&existing).Error
	if err == nil {
		l.Warn("create_user_failed", "status", 422, "reason", "email exists")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "Email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		l.Error("create_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "database error")
	}

	hashed, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("create_user_failed", "status", 500, "reason", "cannot hash password", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot hash password")
	}

	if req.Role == "" {
		req.Role = models.RoleCustomer
	}
	user := models.User{
		UserName:    req.UserName,
		Email:       req.Email,
		Password:    hashed,
		Role:        req.Role,
		PhoneNumber: req.PhoneNumber,
	}
	if err := h.DB.WithContext(ctx).Create(&user).Error; err != nil {
		l.Warn("create_user_failed", "error", err)
		return persistError(err)
	}

	token, err := service.SignAccessToken(user.ID, user.Role, h.JWTSecret)
	if err != nil {
		l.Error("create_user_failed", "status", 500, "reason", "cannot sign token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not create token")
	}

	publishEvent(c, h.Producer, "user_events", fmt.Sprint(user.ID), map[string]interface{}{
		"type":      "user_registered",
		"user_id":   user.ID,
		"user_name": user.UserName,
	})

	l.Info("create_user_success", "user_id", user.ID)
	return c.JSON(http.StatusCreated, echo.Map{
		"user":         user,
		"access_token": token,
	})
}

func (h *UserHandler) GetUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.get_user")

	user, httpErr := h.findByParam(c)
	if httpErr != nil {
		l.Warn("get_user_failed", "status", httpErr.Code)
		return httpErr
	}
	return c.JSON(http.StatusOK, user)
}

// PatchUser applies an allow-listed partial update. Absent fields are left
// untouched; model validation re-runs on save.
func (h *UserHandler) PatchUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.patch_user")

	user, httpErr := h.findByParam(c)
	if httpErr != nil {
		l.Warn("patch_user_failed", "status", httpErr.Code)
		return httpErr
	}

	var req struct {
		UserName    *string `json:"user_name"`
		Email       *string `json:"email"`
		Password    *string `json:"password"`
		PhoneNumber *string `json:"phone_number"`
		Role        *string `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("patch_user_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.UserName != nil {
		user.UserName = *req.UserName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if req.Password != nil {
		hashed, err := hash.HashPassword(*req.Password)
		if err != nil {
			l.Error("patch_user_failed", "status", 500, "reason", "cannot hash password", "error", err)
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot hash password")
		}
		user.Password = hashed
	}
	if req.Role != nil {
		if acting := auth.CurrentUser(c); acting == nil || acting.Role != models.RoleAdmin {
			l.Warn("patch_user_failed", "status", 403, "reason", "role change requires admin")
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		}
		user.Role = *req.Role
	}

	if err := h.DB.WithContext(ctx).Save(user).Error; err != nil {
		l.Warn("patch_user_failed", "error", err)
		return persistError(err)
	}

	l.Info("patch_user_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes the account and cascades to its orders and their lines
// in one transaction.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "user.delete_user")

	user, httpErr := h.findByParam(c)
	if httpErr != nil {
		l.Warn("delete_user_failed", "status", httpErr.Code)
		return httpErr
	}

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var orderIDs []uint
		if err := tx.Model(&models.Order{}).Where("user_id = ?", user.ID).Pluck("id", &orderIDs).Error; err != nil {
			return err
		}
		if len(orderIDs) > 0 {
			if err := tx.Where("order_id IN ?", orderIDs).Delete(&models.OrderProduct{}).Error; err != nil {
				return err
			}
			if err := tx.Where("user_id = ?", user.ID).Delete(&models.Order{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		l.Error("delete_user_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete user")
	}

	l.Info("delete_user_success", "user_id", user.ID)
	return c.JSON(http.StatusOK, echo.Map{"message": "User deleted"})
}

func (h *UserHandler) findByParam(c echo.Context) (*models.User, *echo.HTTPError) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var user models.User
	if err := h.DB.WithContext(c.Request().Context()).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "database error")
	}
	return &user, nil
}
