package apiclient_test

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjay900/joybridge/apiclient"
	apitypes "github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/internal/server/api/auth"
)

// startLineServer accepts one connection, records the request up to the null
// terminator and answers with response.
func startLineServer(t *testing.T, response string) (addr string, got <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	ch := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		line, _ := bufio.NewReader(conn).ReadString('\x00')
		ch <- line
		_, _ = conn.Write([]byte(response))
	}()
	return ln.Addr().String(), ch
}

func TestTransportRequestFraming(t *testing.T) {
	override := apitypes.OverrideRequest{Buttons: []string{"A"}, LeftStick: apitypes.Stick{X: 50}}
	overrideJSON, err := json.Marshal(override)
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		payload any
		want    string
	}{
		{name: "no payload", path: "status", payload: nil, want: "status\x00"},
		{name: "empty string payload", path: "status", payload: "", want: "status\x00"},
		{name: "bytes payload", path: "snapshot/set", payload: []byte("[161,48]"), want: "snapshot/set [161,48]\x00"},
		{name: "multi-line payload", path: "snapshot/set", payload: "{\n\"buttons\":[0,0,8]\n}", want: "snapshot/set {\n\"buttons\":[0,0,8]\n}\x00"},
		{name: "struct payload", path: "override/set", payload: override, want: "override/set " + string(overrideJSON) + "\x00"},
		{name: "path is lowercased", path: "Override/Clear", payload: nil, want: "override/clear\x00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, got := startLineServer(t, "{}\n")
			out, err := apiclient.NewTransport(addr).Do(tt.path, tt.payload, nil)
			require.NoError(t, err)
			assert.Equal(t, "{}", out)
			assert.Equal(t, tt.want, <-got)
		})
	}
}

func TestTransportMultiLineResponse(t *testing.T) {
	addr, _ := startLineServer(t, "{\n  \"lifecycle\": \"connected\"\n}\n")

	out, err := apiclient.NewTransport(addr).Do("status", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"lifecycle\": \"connected\"\n}", out)
}

func TestTransportDialError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = apiclient.NewTransport(addr).Do("ping", nil, nil)
	assert.ErrorContains(t, err, "dial")
	assert.ErrorIs(t, err, apiclient.ErrNotRunning)
}

func TestEncryptedTransport(t *testing.T) {
	echo := func(t *testing.T, conn net.Conn) {
		defer conn.Close()
		key, err := auth.DeriveKey("hunter2")
		assert.NoError(t, err)

		clientNonce, serverNonce, err := auth.ServerHandshake(bufio.NewReader(conn), conn, key)
		if err != nil {
			var apiErr apitypes.ApiError
			if errors.As(err, &apiErr) {
				b, _ := json.Marshal(apiErr)
				_, _ = conn.Write(append(b, '\n'))
			}
			return
		}
		secure, err := auth.WrapConn(conn, auth.DeriveSessionKey(key, serverNonce, clientNonce))
		assert.NoError(t, err)
		line, err := bufio.NewReader(secure).ReadString('\x00')
		if err != nil {
			return
		}
		_, err = secure.Write([]byte(strings.TrimSuffix(line, "\x00")))
		assert.NoError(t, err)
	}

	tests := []struct {
		name     string
		password string
		handler  func(t *testing.T, conn net.Conn)
		wantErr  string
		wantFail bool
	}{
		{name: "success", password: "hunter2", handler: echo},
		{name: "wrong password", password: "letmein", handler: echo, wantErr: "401 Unauthorized: invalid password"},
		{
			name:     "bad handshake response",
			password: "hunter2",
			handler: func(t *testing.T, conn net.Conn) {
				defer conn.Close()
				_, _ = conn.Write([]byte("NO\x00" + strings.Repeat("x", 32)))
			},
			wantErr: "invalid handshake response",
		},
		{
			name:     "server closes early",
			password: "hunter2",
			handler:  func(t *testing.T, conn net.Conn) { _ = conn.Close() },
			wantFail: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ln, err := net.Listen("tcp", "127.0.0.1:0")
			require.NoError(t, err)
			defer ln.Close()
			go func() {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				tt.handler(t, conn)
			}()

			out, err := apiclient.NewTransportWithPassword(ln.Addr().String(), tt.password).Do("status", "x", nil)
			if tt.wantFail {
				assert.Error(t, err)
				return
			}
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "status x", out)
		})
	}
}
