package handler

import (
	"encoding/json"
	"log/slog"

	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/internal/server/api"
)

// ServerName identifies the bridge in ping replies.
const ServerName = "joybridge"

// Ping returns a handler that reports the server identity and version.
func Ping(version string) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		return reply(res, apitypes.PingResponse{Server: ServerName, Version: version})
	}
}

// reply marshals v into the response.
func reply(res *api.Response, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return api.ErrInternal("failed to marshal response: " + err.Error())
	}
	res.JSON = string(b)
	return nil
}
