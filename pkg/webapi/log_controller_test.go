package webapi

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogController(t *testing.T) {
	ctrl := NewLogController()

	settings := func(t *testing.T, body []byte) logSettings {
		var s logSettings
		require.NoError(t, json.Unmarshal(body, &s))
		return s
	}

	t.Run("set level on a new context", func(t *testing.T) {
		c, rec := setupEchoContext(http.MethodPost, "/admin/log", []byte(`{"context":"webapi-test","log_level":"debug"}`))
		require.NoError(t, ctrl.SetLogging(c))

		s := settings(t, rec.Body.Bytes())
		assert.Equal(t, "webapi-test", s.Context)
		assert.Equal(t, "debug", s.Level)
		assert.Equal(t, "stdout", s.Output)
	})

	t.Run("show", func(t *testing.T) {
		c, rec := setupEchoContext(http.MethodGet, "/admin/log?context=webapi-test", nil)
		require.NoError(t, ctrl.ShowCurrentLogging(c))
		assert.Equal(t, "debug", settings(t, rec.Body.Bytes()).Level)
	})

	t.Run("bad level", func(t *testing.T) {
		c, _ := setupEchoContext(http.MethodPost, "/admin/log", []byte(`{"context":"webapi-test","log_level":"loud"}`))
		err := ctrl.SetLogging(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, StatusFor(err))
	})

	t.Run("unopenable output rolls back the level", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "missing", "dir", "out.log")
		c, _ := setupEchoContext(http.MethodPost, "/admin/log",
			[]byte(`{"context":"webapi-test","log_level":"error","log_output":"`+bad+`"}`))
		err := ctrl.SetLogging(c)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, StatusFor(err))

		c, rec := setupEchoContext(http.MethodGet, "/admin/log?context=webapi-test", nil)
		require.NoError(t, ctrl.ShowCurrentLogging(c))
		assert.Equal(t, "debug", settings(t, rec.Body.Bytes()).Level)
	})

	t.Run("file output", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "out.log")
		c, rec := setupEchoContext(http.MethodPost, "/admin/log", []byte(`{"context":"webapi-test","log_output":"`+out+`"}`))
		require.NoError(t, ctrl.SetLogging(c))
		assert.Equal(t, out, settings(t, rec.Body.Bytes()).Output)
	})
}
