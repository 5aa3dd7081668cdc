package auth

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/service"
)

// Level is the access tier a route demands. Routes declare their level in the
// router table; the guard evaluates it centrally before the handler runs.
type Level int

const (
	LevelAnonymous Level = iota
	LevelUser            // any valid token
	LevelSelf            // the user named by :id, or an admin
	LevelAdmin
)

const userContextKey = "current_user"

type Guard struct {
	DB        *gorm.DB
	JWTSecret []byte
}

func (g *Guard) Require(level Level) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if level == LevelAnonymous {
				return next(c)
			}

			user, err := g.authenticate(c)
			if err != nil {
				return err
			}
			c.Set(userContextKey, user)

			switch level {
			case LevelAdmin:
				if user.Role != models.RoleAdmin {
					return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
				}
			case LevelSelf:
				if user.Role == models.RoleAdmin {
					break
				}
				id, err := strconv.Atoi(c.Param("id"))
				if err != nil || uint(id) != user.ID {
					return echo.NewHTTPError(http.StatusForbidden, "Access denied")
				}
			}

			return next(c)
		}
	}
}

func (g *Guard) authenticate(c echo.Context) (*models.User, error) {
	raw := bearerToken(c)
	if raw == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
	}

	userID, err := service.ParseAccessToken(raw, g.JWTSecret)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
	}

	var user models.User
	if err := g.DB.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, echo.NewHTTPError(http.StatusNotFound, "User not found")
		}
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "cannot load user")
	}
	return &user, nil
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return h
}

// CurrentUser returns the account the guard authenticated, or nil on
// anonymous routes.
func CurrentUser(c echo.Context) *models.User {
	if u, ok := c.Get(userContextKey).(*models.User); ok {
		return u
	}
	return nil
}
