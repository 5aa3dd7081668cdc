package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/matrixbuild/materials_shop/internal/handlers"
	"github.com/matrixbuild/materials_shop/internal/middleware/auth"
	"github.com/matrixbuild/materials_shop/internal/models"
)

type Deps struct {
	Guard           *auth.Guard
	AuthHandler     *handlers.AuthHandler
	UserHandler     *handlers.UserHandler
	CatalogHandlers map[models.Kind]*handlers.CatalogHandler
	GalleryHandler  *handlers.GalleryHandler
	OrderHandler    *handlers.OrderHandler
	SearchHandler   *handlers.SearchHandler
}

type route struct {
	method string
	path   string
	level  auth.Level
	h      echo.HandlerFunc
}

// Register declares every route with its access level; the guard enforces
// the level before the handler runs.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	routes := []route{
		{http.MethodGet, "/", auth.LevelAnonymous, index},

		{http.MethodPost, "/login", auth.LevelAnonymous, d.AuthHandler.Login},
		{http.MethodPost, "/create_admin", auth.LevelAnonymous, d.AuthHandler.CreateAdmin},

		{http.MethodGet, "/users", auth.LevelAnonymous, d.UserHandler.GetUsers},
		{http.MethodPost, "/users", auth.LevelAnonymous, d.UserHandler.CreateUser},
		{http.MethodGet, "/users/:id", auth.LevelSelf, d.UserHandler.GetUser},
		{http.MethodPatch, "/users/:id", auth.LevelSelf, d.UserHandler.PatchUser},
		{http.MethodDelete, "/users/:id", auth.LevelAdmin, d.UserHandler.DeleteUser},

		{http.MethodGet, "/gallery", auth.LevelAnonymous, d.GalleryHandler.GetImages},
		{http.MethodPost, "/gallery", auth.LevelAdmin, d.GalleryHandler.CreateImage},
		{http.MethodDelete, "/gallery", auth.LevelAdmin, d.GalleryHandler.DeleteImage},

		{http.MethodGet, "/orders", auth.LevelUser, d.OrderHandler.GetOrders},
		{http.MethodPost, "/orders", auth.LevelUser, d.OrderHandler.CreateOrder},
		{http.MethodGet, "/orders/:id", auth.LevelUser, d.OrderHandler.GetOrder},
	}

	for kind, h := range d.CatalogHandlers {
		path := "/" + kind.Table()
		routes = append(routes,
			route{http.MethodGet, path, auth.LevelAnonymous, h.GetItems},
			route{http.MethodPost, path, auth.LevelAdmin, h.CreateItem},
			route{http.MethodDelete, path, auth.LevelAdmin, h.DeleteItem},
		)
	}

	if d.SearchHandler != nil {
		routes = append(routes, route{http.MethodGet, "/search", auth.LevelAnonymous, d.SearchHandler.Search})
	}

	for _, r := range routes {
		e.Add(r.method, r.path, r.h, d.Guard.Require(r.level))
	}
}

func index(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"message": "Welcome to the Matrix RESTful API"})
}
