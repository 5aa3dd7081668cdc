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

type GalleryHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *GalleryHandler) GetImages(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "gallery.get_images")

	var images []models.Gallery
	if err := h.DB.WithContext(ctx).Order("id ASC").Find(&images).Error; err != nil {
		l.Error("get_images_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list gallery")
	}
	return c.JSON(http.StatusOK, images)
}

func (h *GalleryHandler) CreateImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "gallery.create_image")

	var req struct {
		ImageURL *string `json:"image_url"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_image_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	image := models.Gallery{ImageURL: req.ImageURL}
	if err := h.DB.WithContext(ctx).Create(&image).Error; err != nil {
		l.Error("create_image_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create image")
	}

	l.Info("create_image_success", "id", image.ID)
	return c.JSON(http.StatusCreated, image)
}

func (h *GalleryHandler) DeleteImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "gallery.delete_image")

	var body map[string]interface{}
	if err := c.Bind(&body); err != nil {
		l.Warn("delete_image_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	raw, ok := body["image_id"].(float64)
	if !ok {
		l.Warn("delete_image_failed", "status", 422, "reason", "missing image_id")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "image_id is required")
	}
	id := uint(raw)

	res := h.DB.WithContext(ctx).Delete(&models.Gallery{}, id)
	if res.Error != nil {
		l.Error("delete_image_failed", "status", 500, "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete image")
	}
	if res.RowsAffected == 0 {
		l.Warn("delete_image_failed", "status", 404, "reason", "not found", "id", id)
		return echo.NewHTTPError(http.StatusNotFound, "Image not found")
	}

	publishEvent(c, h.Producer, "product_events", fmt.Sprint(id), map[string]interface{}{
		"type": "gallery_image_deleted",
		"id":   id,
	})

	l.Info("delete_image_success", "id", id)
	return c.JSON(http.StatusOK, echo.Map{"message": "Image deleted"})
}
