package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/matrixbuild/materials_shop/internal/middleware/auth"
	"github.com/matrixbuild/materials_shop/internal/models"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/users", map[string]string{
		"user_name":    "Alice",
		"email":        "Alice@x.com",
		"password":     "p",
		"phone_number": "1234567890",
	}, "")
	require.NoError(t, env.U.CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		User        map[string]interface{} `json:"user"`
		AccessToken string                 `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "alice@x.com", resp.User["email"])
	require.Equal(t, models.RoleCustomer, resp.User["role"])
	require.NotContains(t, resp.User, "password")

	var stored models.User
	require.NoError(t, env.DB.Where("user_name = ?", "Alice").First(&stored).Error)
	require.Equal(t, "alice@x.com", stored.Email)
	require.NotEqual(t, "p", stored.Password)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "first", "dup@example.com", models.RoleCustomer)

	_, c := env.doJSONRequest(http.MethodPost, "/users", map[string]string{
		"user_name":    "second",
		"email":        "DUP@example.com",
		"password":     "p",
		"phone_number": "1234567890",
	}, "")
	requireHTTPError(t, env.U.CreateUser(c), http.StatusUnprocessableEntity)

	var count int64
	env.DB.Model(&models.User{}).Count(&count)
	require.Equal(t, int64(1), count)
}

func TestCreateUserValidation(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.doJSONRequest(http.MethodPost, "/users", map[string]string{
		"user_name":    "bademail",
		"email":        "not-an-email",
		"password":     "p",
		"phone_number": "1234567890",
	}, "")
	requireHTTPError(t, env.U.CreateUser(c), http.StatusUnprocessableEntity)

	_, c = env.doJSONRequest(http.MethodPost, "/users", map[string]string{
		"user_name":    "badphone",
		"email":        "ok@example.com",
		"password":     "p",
		"phone_number": "123",
	}, "")
	requireHTTPError(t, env.U.CreateUser(c), http.StatusUnprocessableEntity)
}

func TestGetUsersUnauthenticated(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "a", "a@example.com", models.RoleCustomer)
	env.createUser(t, "b", "b@example.com", models.RoleAdmin)

	rec, c := env.doJSONRequest(http.MethodGet, "/users", nil, "")
	require.NoError(t, env.U.GetUsers(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var users []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 2)
	for _, u := range users {
		require.NotContains(t, u, "password")
	}
}

func TestGetUserAccess(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", "owner@example.com", models.RoleCustomer)
	other := env.createUser(t, "other", "other@example.com", models.RoleCustomer)
	admin := env.createUser(t, "admin", "admin@example.com", models.RoleAdmin)

	get := env.guarded(auth.LevelSelf, env.U.GetUser)
	ownerID := fmt.Sprint(owner.ID)

	rec, c := env.doJSONRequest(http.MethodGet, "/users/"+ownerID, nil, env.tokenFor(t, owner))
	c.SetParamNames("id")
	c.SetParamValues(ownerID)
	require.NoError(t, get(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c = env.doJSONRequest(http.MethodGet, "/users/"+ownerID, nil, env.tokenFor(t, other))
	c.SetParamNames("id")
	c.SetParamValues(ownerID)
	requireHTTPError(t, get(c), http.StatusForbidden)

	rec, c = env.doJSONRequest(http.MethodGet, "/users/"+ownerID, nil, env.tokenFor(t, admin))
	c.SetParamNames("id")
	c.SetParamValues(ownerID)
	require.NoError(t, get(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c = env.doJSONRequest(http.MethodGet, "/users/9999", nil, env.tokenFor(t, admin))
	c.SetParamNames("id")
	c.SetParamValues("9999")
	requireHTTPError(t, get(c), http.StatusNotFound)
}

func TestGetUserNoToken(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner", "owner@example.com", models.RoleCustomer)

	get := env.guarded(auth.LevelSelf, env.U.GetUser)
	_, c := env.doJSONRequest(http.MethodGet, "/users/1", nil, "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(owner.ID))
	requireHTTPError(t, get(c), http.StatusUnauthorized)
}

func TestPatchUser(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "patchme", "patch@example.com", models.RoleCustomer)
	id := fmt.Sprint(user.ID)

	patch := env.guarded(auth.LevelSelf, env.U.PatchUser)

	rec, c := env.doJSONRequest(http.MethodPatch, "/users/"+id, map[string]string{
		"phone_number": "0987654321",
		"email":        "New@Example.com",
	}, env.tokenFor(t, user))
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, patch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, env.DB.First(&stored, user.ID).Error)
	require.Equal(t, "0987654321", stored.PhoneNumber)
	require.Equal(t, "new@example.com", stored.Email)
	require.Equal(t, "patchme", stored.UserName)
}

func TestPatchUserRevalidates(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "patchme", "patch@example.com", models.RoleCustomer)
	id := fmt.Sprint(user.ID)

	patch := env.guarded(auth.LevelSelf, env.U.PatchUser)
	_, c := env.doJSONRequest(http.MethodPatch, "/users/"+id, map[string]string{
		"email": "broken",
	}, env.tokenFor(t, user))
	c.SetParamNames("id")
	c.SetParamValues(id)
	requireHTTPError(t, patch(c), http.StatusUnprocessableEntity)
}

func TestPatchUserRoleRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "climber", "climber@example.com", models.RoleCustomer)
	admin := env.createUser(t, "admin", "admin@example.com", models.RoleAdmin)
	id := fmt.Sprint(user.ID)

	patch := env.guarded(auth.LevelSelf, env.U.PatchUser)

	_, c := env.doJSONRequest(http.MethodPatch, "/users/"+id, map[string]string{
		"role": models.RoleAdmin,
	}, env.tokenFor(t, user))
	c.SetParamNames("id")
	c.SetParamValues(id)
	requireHTTPError(t, patch(c), http.StatusForbidden)

	rec, c := env.doJSONRequest(http.MethodPatch, "/users/"+id, map[string]string{
		"role": models.RoleAdmin,
	}, env.tokenFor(t, admin))
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, patch(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var stored models.User
	require.NoError(t, env.DB.First(&stored, user.ID).Error)
	require.Equal(t, models.RoleAdmin, stored.Role)
}

func TestDeleteUserCascades(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "doomed", "doomed@example.com", models.RoleCustomer)
	admin := env.createUser(t, "admin", "admin@example.com", models.RoleAdmin)

	item := env.createItem(t, models.KindBeamBlock, 10.5)
	order := models.Order{
		UserID:     user.ID,
		TotalPrice: 10.5,
		Products:   []models.OrderProduct{{Kind: models.KindBeamBlock, ItemID: item.ID}},
	}
	require.NoError(t, env.DB.Create(&order).Error)

	del := env.guarded(auth.LevelAdmin, env.U.DeleteUser)
	id := fmt.Sprint(user.ID)

	_, c := env.doJSONRequest(http.MethodDelete, "/users/"+id, nil, env.tokenFor(t, user))
	c.SetParamNames("id")
	c.SetParamValues(id)
	requireHTTPError(t, del(c), http.StatusForbidden)

	rec, c := env.doJSONRequest(http.MethodDelete, "/users/"+id, nil, env.tokenFor(t, admin))
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, del(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var orders, lines int64
	env.DB.Model(&models.Order{}).Count(&orders)
	env.DB.Model(&models.OrderProduct{}).Count(&lines)
	require.Zero(t, orders)
	require.Zero(t, lines)
}
