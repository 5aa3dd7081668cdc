package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/matrixbuild/materials_shop/internal/hash"
	"github.com/matrixbuild/materials_shop/internal/middleware/auth"
	"github.com/matrixbuild/materials_shop/internal/models"
	"github.com/matrixbuild/materials_shop/internal/service"
)

var testSecret = []byte("test-secret")

type testEnv struct {
	E       *echo.Echo
	DB      *gorm.DB
	Guard   *auth.Guard
	A       *AuthHandler
	U       *UserHandler
	G       *GalleryHandler
	O       *OrderHandler
	Catalog map[models.Kind]*CatalogHandler
}

func initTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := initTestDB(t)

	env := &testEnv{
		E:     echo.New(),
		DB:    db,
		Guard: &auth.Guard{DB: db, JWTSecret: testSecret},
		A:     &AuthHandler{DB: db, JWTSecret: testSecret, AdminKey: "bootstrap-key"},
		U:     &UserHandler{DB: db, JWTSecret: testSecret},
		G:     &GalleryHandler{DB: db},
		O:     &OrderHandler{DB: db},
	}
	env.Catalog = make(map[models.Kind]*CatalogHandler)
	for _, k := range models.Kinds {
		env.Catalog[k] = &CatalogHandler{DB: db, Kind: k}
	}
	return env
}

func (env *testEnv) doJSONRequest(method, target string, payload interface{}, token string) (*httptest.ResponseRecorder, echo.Context) {
	var body io.Reader
	if payload != nil {
		b, _ := json.Marshal(payload)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

func (env *testEnv) createUser(t *testing.T, name, email, role string) models.User {
	t.Helper()
	hashed, err := hash.HashPassword("password")
	require.NoError(t, err)
	user := models.User{
		UserName:    name,
		Email:       email,
		Password:    hashed,
		Role:        role,
		PhoneNumber: "1234567890",
	}
	require.NoError(t, env.DB.Create(&user).Error)
	return user
}

func (env *testEnv) tokenFor(t *testing.T, user models.User) string {
	t.Helper()
	token, err := service.SignAccessToken(user.ID, user.Role, testSecret)
	require.NoError(t, err)
	return token
}

func (env *testEnv) createItem(t *testing.T, kind models.Kind, price float64) models.CatalogItem {
	t.Helper()
	item := models.CatalogItem{Price: price}
	require.NoError(t, env.DB.Table(kind.Table()).Create(&item).Error)
	return item
}

// guarded wraps a handler the way the router does, so access checks run in
// tests too.
func (env *testEnv) guarded(level auth.Level, h echo.HandlerFunc) echo.HandlerFunc {
	return env.Guard.Require(level)(h)
}

func requireHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %v", err)
	require.Equal(t, code, he.Code)
}
