package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/logging"
	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/mykafka"
)

// CatalogHandler serves one of the five structurally identical catalog
// tables; the router instantiates it once per kind.
type CatalogHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	Kind     models.Kind
}

func (h *CatalogHandler) table(ctx echo.Context) *gorm.DB {
	return h.DB.WithContext(ctx.Request().Context()).Table(h.Kind.Table())
}

func (h *CatalogHandler) GetItems(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", string(h.Kind)+".get_items")

	var items []models.CatalogItem
	if err := h.table(c).Order("id ASC").Find(&items).Error; err != nil {
		l.Error("get_items_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list items")
	}
	return c.JSON(http.StatusOK, items)
}

func (h *CatalogHandler) CreateItem(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", string(h.Kind)+".create_item")

	var req struct {
		Price       *float64 `json:"price"`
		ImageURL    *string  `json:"image_url"`
		Description *string  `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Price == nil {
		l.Warn("create_item_failed", "status", 422, "reason", "price required")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "price is required")
	}
	if *req.Price < 0 {
		l.Warn("create_item_failed", "status", 422, "reason", "negative price")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "price cannot be negative")
	}

	item := models.CatalogItem{
		Price:       *req.Price,
		ImageURL:    req.ImageURL,
		Description: req.Description,
	}
	if err := h.table(c).Create(&item).Error; err != nil {
		l.Error("create_item_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create item")
	}

	publishEvent(c, h.Producer, "product_events", fmt.Sprint(item.ID), map[string]interface{}{
		"type": "product_created",
		"kind": h.Kind,
		"id":   item.ID,
	})

	l.Info("create_item_success", "id", item.ID)
	return c.JSON(http.StatusCreated, item)
}

// DeleteItem takes the id from the request body under "<kind>_id", matching
// the established wire format. Items still referenced by order lines are not
// deletable.
func (h *CatalogHandler) DeleteItem(c echo.Context) error {
	l := logging.FromContext(c.Request().Context()).With("handler", string(h.Kind)+".delete_item")

	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		l.Warn("delete_item_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	raw, ok := body[h.Kind.RefField()].(float64)
	if !ok {
		l.Warn("delete_item_failed", "status", 422, "reason", "missing id")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, h.Kind.RefField()+" is required")
	}
	id := uint(raw)

	var refs int64
	if err := h.DB.WithContext(c.Request().Context()).
		Model(&models.OrderProduct{}).
		Where("kind = ? AND item_id = ?", h.Kind, id).
		Count(&refs).Error; err != nil {
		l.Error("delete_item_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "database error")
	}
	if refs > 0 {
		l.Warn("delete_item_failed", "status", 422, "reason", "referenced by orders", "refs", refs)
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "item is referenced by existing orders")
	}

	res := h.table(c).Where("id = ?", id).Delete(&models.CatalogItem{})
	if res.Error != nil {
		l.Error("delete_item_failed", "status", 500, "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete item")
	}
	if res.RowsAffected == 0 {
		l.Warn("delete_item_failed", "status", 404, "reason", "not found", "id", id)
		return echo.NewHTTPError(http.StatusNotFound, h.Kind.Label()+" not found")
	}

	publishEvent(c, h.Producer, "product_events", fmt.Sprint(id), map[string]interface{}{
		"type": "product_deleted",
		"kind": h.Kind,
		"id":   id,
	})

	l.Info("delete_item_success", "id", id)
	return c.JSON(http.StatusOK, echo.Map{"message": h.Kind.Label() + " deleted"})
}
