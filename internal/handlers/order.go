package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/logging"
	"github.com/matrixbuild/materials_shop/internal/middleware/auth"
	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/mykafka"
)

type OrderHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

// orderLineRequest keeps the established wire format: one optional reference
// field per catalog kind, of which exactly one must be set.
type orderLineRequest struct {
	BeamBlockID   *uint `json:"beamblock_id"`
	HollowBlockID *uint `json:"hollowblock_id"`
	PavingBlockID *uint `json:"pavingblock_id"`
	RoadKerbID    *uint `json:"roadkerb_id"`
	ServiceID     *uint `json:"service_id"`
}

func (r orderLineRequest) reference() (models.Kind, uint, error) {
	refs := []struct {
		kind models.Kind
		id   *uint
	}{
		{models.KindBeamBlock, r.BeamBlockID},
		{models.KindHollowBlock, r.HollowBlockID},
		{models.KindPavingBlock, r.PavingBlockID},
		{models.KindRoadKerb, r.RoadKerbID},
		{models.KindService, r.ServiceID},
	}

	var kind models.Kind
	var id uint
	n := 0
	for _, ref := range refs {
		if ref.id != nil {
			kind, id = ref.kind, *ref.id
			n++
		}
	}
	switch n {
	case 1:
		return kind, id, nil
	case 0:
		return "", 0, errors.New("order line must reference a catalog item")
	default:
		return "", 0, errors.New("order line must reference exactly one catalog item")
	}
}

type orderLineResponse struct {
	ID            uint  `json:"id"`
	OrderID       uint  `json:"order_id"`
	BeamBlockID   *uint `json:"beamblock_id"`
	HollowBlockID *uint `json:"hollowblock_id"`
	PavingBlockID *uint `json:"pavingblock_id"`
	RoadKerbID    *uint `json:"roadkerb_id"`
	ServiceID     *uint `json:"service_id"`
}

type orderResponse struct {
	ID            uint                `json:"id"`
	UserID        uint                `json:"user_id"`
	OrderDate     time.Time           `json:"order_date"`
	TotalPrice    float64             `json:"total_price"`
	OrderProducts []orderLineResponse `json:"order_products"`
}

func toOrderResponse(o models.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		OrderDate:     o.OrderDate,
		TotalPrice:    o.TotalPrice,
		OrderProducts: make([]orderLineResponse, len(o.Products)),
	}
	for i, p := range o.Products {
		line := orderLineResponse{ID: p.ID, OrderID: p.OrderID}
		id := p.ItemID
		switch p.Kind {
		case models.KindBeamBlock:
			line.BeamBlockID = &id
		case models.KindHollowBlock:
			line.HollowBlockID = &id
		case models.KindPavingBlock:
			line.PavingBlockID = &id
		case models.KindRoadKerb:
			line.RoadKerbID = &id
		case models.KindService:
			line.ServiceID = &id
		}
		resp.OrderProducts[i] = line
	}
	return resp
}

func (h *OrderHandler) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_orders")

	user := auth.CurrentUser(c)
	q := h.DB.WithContext(ctx).Preload("Products").Order("id ASC")
	if user.Role != models.RoleAdmin {
		q = q.Where("user_id = ?", user.ID)
	}

	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		l.Error("get_orders_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return c.JSON(http.StatusOK, resp)
}

// CreateOrder persists the order and all its lines in one transaction; any
// invalid catalog reference rolls the whole thing back.
func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create_order")

	user := auth.CurrentUser(c)

	var req struct {
		TotalPrice    *float64           `json:"total_price"`
		OrderProducts []orderLineRequest `json:"order_products"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.TotalPrice == nil {
		l.Warn("create_order_failed", "status", 422, "reason", "total_price required")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "total_price is required")
	}
	if *req.TotalPrice < 0 {
		l.Warn("create_order_failed", "status", 422, "reason", "negative total_price")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "total_price cannot be negative")
	}
	if len(req.OrderProducts) == 0 {
		l.Warn("create_order_failed", "status", 422, "reason", "no order lines")
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "order_products must not be empty")
	}

	lines := make([]models.OrderProduct, len(req.OrderProducts))
	for i, lr := range req.OrderProducts {
		kind, id, err := lr.reference()
		if err != nil {
			l.Warn("create_order_failed", "status", 422, "reason", "bad line", "error", err)
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		lines[i] = models.OrderProduct{Kind: kind, ItemID: id}
	}

	order := models.Order{
		UserID:     user.ID,
		OrderDate:  time.Now().UTC(),
		TotalPrice: *req.TotalPrice,
		Products:   lines,
	}

	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, line := range order.Products {
			var count int64
			if err := tx.Table(line.Kind.Table()).Where("id = ?", line.ItemID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: unknown %s %d", models.ErrValidation, line.Kind.RefField(), line.ItemID)
			}
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		if errors.Is(err, models.ErrValidation) {
			l.Warn("create_order_failed", "status", 422, "reason", "unknown reference", "error", err)
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		l.Error("create_order_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create order")
	}

	publishEvent(c, h.Producer, "order_events", fmt.Sprint(order.ID), map[string]interface{}{
		"type":        "order_created",
		"order_id":    order.ID,
		"user_id":     user.ID,
		"total_price": order.TotalPrice,
		"lines":       len(order.Products),
	})

	l.Info("create_order_success", "order_id", order.ID, "lines", len(order.Products))
	return c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get_order")

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		l.Warn("get_order_failed", "status", 400, "reason", "id not an integer", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "id is not an integer")
	}

	var order models.Order
	if err := h.DB.WithContext(ctx).Preload("Products").First(&order, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("get_order_failed", "status", 404, "reason", "not found", "id", id)
			return echo.NewHTTPError(http.StatusNotFound, "Order not found")
		}
		l.Error("get_order_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "database error")
	}

	user := auth.CurrentUser(c)
	if order.UserID != user.ID && user.Role != models.RoleAdmin {
		l.Warn("get_order_failed", "status", 403, "reason", "not owner", "order_id", order.ID)
		return echo.NewHTTPError(http.StatusForbidden, "Access denied")
	}

	return c.JSON(http.StatusOK, toOrderResponse(order))
}
