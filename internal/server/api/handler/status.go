package handler

import (
	"log/slog"

	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/internal/server/api"
	"github.com/sanjay900/joybridge/state"
)

// Status returns a handler that reports the lifecycle and last error as one
// consistent pair. Each observer is called with the status a reply carried.
func Status(st *state.State, observers ...func(state.Status)) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		s := st.Status()
		if err := reply(res, apitypes.StatusResponse{Lifecycle: s.Lifecycle.String(), LastError: s.LastError}); err != nil {
			return err
		}
		for _, fn := range observers {
			fn(s)
		}
		return nil
	}
}
