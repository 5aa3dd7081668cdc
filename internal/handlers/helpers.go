package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/mykafka"
)

// publishEvent is fire-and-forget: a broker outage must not fail the request.
func publishEvent(c echo.Context, p *mykafka.Producer, topic, key string, event map[string]interface{}) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// persistError maps model validation and unique-constraint failures to 422;
// anything else stays a server fault.
func persistError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "value already exists")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "database error")
	}
}
