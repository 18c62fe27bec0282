package webapi

import (
	"net/http"
	"testing"

	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/akademi-crypto/vidhub/pkg/webapi/apimiddleware"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedUser(t *testing.T, env *testEnv, id, role string) {
	t.Helper()

	_, err := env.stors.UserStor.CreateUser(&vhmodel.User{ID: id, DiscordID: "discord-" + id, Username: id, Role: role})
	require.NoError(t, err)
}

func asPrincipal(c echo.Context, id, role string) echo.Context {
	apimiddleware.SetPrincipal(c, apimiddleware.Principal{UserID: id, Role: role})
	return c
}

func TestUserController(t *testing.T) {
	env := newTestEnv(t)
	ctrl := NewUserController(env.stors.UserStor)

	seedUser(t, env, "alice", vhmodel.RoleClient)
	seedUser(t, env, "root", vhmodel.RoleAdmin)

	t.Run("list", func(t *testing.T) {
		c, rec := setupEchoContext(http.MethodGet, "/api/users", nil)
		require.NoError(t, ctrl.ListUsers(c))
		assert.Contains(t, rec.Body.String(), `"id":"alice"`)
		assert.Contains(t, rec.Body.String(), `"id":"root"`)
	})

	t.Run("get requires a principal", func(t *testing.T) {
		c, _ := setupEchoContext(http.MethodGet, "/api/users/alice", nil)
		withParams(c, []string{"id"}, []string{"alice"})
		err := ctrl.GetUser(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusUnauthorized, StatusFor(err))
	})

	t.Run("get self", func(t *testing.T) {
		c, rec := setupEchoContext(http.MethodGet, "/api/users/alice", nil)
		withParams(asPrincipal(c, "alice", vhmodel.RoleClient), []string{"id"}, []string{"alice"})
		require.NoError(t, ctrl.GetUser(c))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("get someone else", func(t *testing.T) {
		c, _ := setupEchoContext(http.MethodGet, "/api/users/root", nil)
		withParams(asPrincipal(c, "alice", vhmodel.RoleClient), []string{"id"}, []string{"root"})
		err := ctrl.GetUser(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, StatusFor(err))
	})

	t.Run("admin reads anyone", func(t *testing.T) {
		c, rec := setupEchoContext(http.MethodGet, "/api/users/alice", nil)
		withParams(asPrincipal(c, "root", vhmodel.RoleAdmin), []string{"id"}, []string{"alice"})
		require.NoError(t, ctrl.GetUser(c))
		assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	})

	t.Run("admin reads unknown user", func(t *testing.T) {
		c, _ := setupEchoContext(http.MethodGet, "/api/users/ghost", nil)
		withParams(asPrincipal(c, "root", vhmodel.RoleAdmin), []string{"id"}, []string{"ghost"})
		err := ctrl.GetUser(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusNotFound, StatusFor(err))
	})

	t.Run("update self", func(t *testing.T) {
		c, rec := setupEchoContext(http.MethodPut, "/api/users/alice",
			[]byte(`{"username":"alice2","avatar":"https://cdn.example.com/a.png"}`))
		withParams(asPrincipal(c, "alice", vhmodel.RoleClient), []string{"id"}, []string{"alice"})
		require.NoError(t, ctrl.UpdateUser(c))
		assert.Contains(t, rec.Body.String(), `"username":"alice2"`)
		assert.Contains(t, rec.Body.String(), `"avatar":"https://cdn.example.com/a.png"`)
	})

	t.Run("update with a bad avatar", func(t *testing.T) {
		c, _ := setupEchoContext(http.MethodPut, "/api/users/alice", []byte(`{"avatar":"not a url"}`))
		withParams(asPrincipal(c, "alice", vhmodel.RoleClient), []string{"id"}, []string{"alice"})
		err := ctrl.UpdateUser(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, StatusFor(err))
	})

	t.Run("admins cannot update others", func(t *testing.T) {
		c, _ := setupEchoContext(http.MethodPut, "/api/users/alice", []byte(`{"username":"x"}`))
		withParams(asPrincipal(c, "root", vhmodel.RoleAdmin), []string{"id"}, []string{"alice"})
		err := ctrl.UpdateUser(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, StatusFor(err))
	})
}
