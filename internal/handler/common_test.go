package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/myblog/internal/apperr"
	"github.com/iliyamo/myblog/internal/audit"
	"github.com/iliyamo/myblog/internal/backend"
)

func newContext() (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/posts", nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		production bool
		wantCode   int
		wantBody   string
	}{
		{"kinded", apperr.Forbidden("nope"), true, http.StatusForbidden, `{"error":"nope"}`},
		{"echo http error", echo.ErrNotFound, true, http.StatusNotFound, `{"error":"Not Found"}`},
		{"internal in dev", errors.New("disk on fire"), false, http.StatusInternalServerError, `{"error":"disk on fire"}`},
		{"internal in production", errors.New("disk on fire"), true, http.StatusInternalServerError, `{"error":"internal server error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext()
			ErrorHandler(tt.production)(tt.err, c)
			require.Equal(t, tt.wantCode, rec.Code)
			require.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestClientsForWrite(t *testing.T) {
	withKey := backend.NewFactory(nil, backend.Repos{}, true, nil, bcrypt.MinCost)
	noKey := backend.NewFactory(nil, backend.Repos{}, false, nil, bcrypt.MinCost)

	c, _ := newContext()
	_, err := Clients{Factory: withKey}.ForWrite(c)
	require.Equal(t, http.StatusUnauthorized, apperr.Status(err), "fallback is off unless enabled")

	client, err := Clients{Factory: withKey, AllowFallback: true}.ForWrite(c)
	require.NoError(t, err)
	require.True(t, client.Principal().Service)

	_, err = Clients{Factory: noKey, AllowFallback: true}.ForWrite(c)
	require.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
}

func TestClientsBearer(t *testing.T) {
	f := backend.NewFactory(nil, backend.Repos{}, true, nil, bcrypt.MinCost)

	c, _ := newContext()
	c.Request().Header.Set(echo.HeaderAuthorization, "Bearer not-checkable")
	_, err := Clients{Factory: f, AllowFallback: true}.ForWrite(c)
	require.ErrorIs(t, err, apperr.ErrUnauthorized, "a bad bearer token never falls back")
	_, err = Clients{Factory: f}.ForRead(c)
	require.ErrorIs(t, err, apperr.ErrUnauthorized)

	c, _ = newContext()
	client, err := Clients{Factory: f}.ForRead(c)
	require.NoError(t, err)
	require.True(t, client.Principal().Anonymous())
}

func TestClientsFallbackIsAudited(t *testing.T) {
	f := backend.NewFactory(nil, backend.Repos{}, true, nil, bcrypt.MinCost)
	var buf bytes.Buffer

	c, _ := newContext()
	c.SetPath("/api/admin/posts/:id")
	c.SetParamNames("id")
	c.SetParamValues("7")
	c.Request().Method = http.MethodDelete
	_, err := Clients{Factory: f, AllowFallback: true, Audit: audit.New(&buf, "test")}.ForWrite(c)
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "/api/admin/posts/:id", line["route"])
	require.Equal(t, "delete", line["action"])
	require.Equal(t, "posts", line["resource"])
	require.Equal(t, "7", line["id"])
	require.Equal(t, "service_role_fallback", line["reason"])
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	require.EqualValues(t, 42, id)

	for _, raw := range []string{"", "0", "-1", "abc"} {
		_, err := parseID(raw)
		require.Error(t, err, raw)
	}
}
