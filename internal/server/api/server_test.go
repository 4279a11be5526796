package api_test

import (
	"errors"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjay900/joybridge/apiclient"
	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/internal/server/api"
	th "github.com/sanjay900/joybridge/internal/testing"
)

func echo(req *api.Request, res *api.Response, logger *slog.Logger) error {
	res.JSON = `{"name":"` + req.Params["name"] + `","payload":"` + req.Payload + `"}`
	return nil
}

func TestServerDispatch(t *testing.T) {
	addr := th.StartAPIServer(t, api.ServerConfig{}, func(r *api.Router) {
		r.Register("echo/{name}", echo)
		r.Register("fail", func(*api.Request, *api.Response, *slog.Logger) error {
			return errors.New("boom")
		})
		r.Register("conflict", func(*api.Request, *api.Response, *slog.Logger) error {
			return api.ErrConflict("already set")
		})
	})

	tests := []struct {
		name string
		cmd  string
		want string
	}{
		{name: "route with param and payload", cmd: "echo/left hello", want: `{"name":"left","payload":"hello"}`},
		{name: "path is case-insensitive", cmd: "ECHO/Right x", want: `{"name":"right","payload":"x"}`},
		{name: "plain error becomes internal problem", cmd: "fail", want: `{"status":500,"title":"Internal Server Error","detail":"boom"}`},
		{name: "api error kept", cmd: "conflict", want: `{"status":409,"title":"Conflict","detail":"already set"}`},
		{name: "unknown path", cmd: "nope", want: `{"status":404,"title":"Not Found","detail":"unknown path: nope"}`},
		{name: "empty request", cmd: "", want: `{"status":400,"title":"Bad Request","detail":"empty request"}`},
		{name: "empty path", cmd: " payload", want: `{"status":400,"title":"Bad Request","detail":"empty path"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.JSONEq(t, tt.want, th.ExecCmd(t, addr, tt.cmd))
		})
	}
}

func TestServerAuthentication(t *testing.T) {
	addr := th.StartAPIServer(t, api.ServerConfig{Password: "hunter2"}, func(r *api.Router) {
		r.Register("echo/{name}", echo)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		assert.JSONEq(t, `{"status":401,"title":"Unauthorized","detail":"authentication required"}`,
			th.ExecCmd(t, addr, "echo/a b"))
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := apiclient.NewTransportWithPassword(addr, "letmein").Do("echo/a", "b", nil)
		var problem *apitypes.ApiError
		require.ErrorAs(t, err, &problem)
		assert.Equal(t, 401, problem.Status)
	})

	t.Run("correct password", func(t *testing.T) {
		out, err := apiclient.NewTransportWithPassword(addr, "hunter2").Do("echo/a", "b", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name":"a","payload":"b"}`, out)
	})
}

func TestServerClose(t *testing.T) {
	srv := api.New(api.ServerConfig{Addr: "127.0.0.1:0"}, slog.Default())
	require.NoError(t, srv.Start())
	addr := srv.Addr().String()

	srv.Close()

	_, err := net.Dial("tcp", addr)
	assert.Error(t, err)
}

func TestRouter(t *testing.T) {
	r := api.NewRouter()
	r.Register("status", echo)
	r.Register("override/{Action}", echo)

	h, params := r.Match("OVERRIDE/Set")
	require.NotNil(t, h)
	assert.Equal(t, map[string]string{"Action": "set"}, params)

	h, _ = r.Match("override")
	assert.Nil(t, h)
	h, _ = r.Match("status/extra")
	assert.Nil(t, h)

	assert.Equal(t, []string{"status", "override/{Action}"}, r.Routes())
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, api.WrapError(nil))
	assert.Equal(t, 500, api.WrapError(errors.New("x")).Status)
	assert.Equal(t, 401, api.WrapError(apitypes.ApiError{Status: 401, Title: "Unauthorized"}).Status)
	wrapped := errors.Join(errors.New("ctx"), api.ErrNotFound("gone"))
	assert.Equal(t, 404, api.WrapError(wrapped).Status)
}
