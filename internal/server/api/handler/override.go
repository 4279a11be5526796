package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/internal/server/api"
	"github.com/sanjay900/joybridge/procon"
	"github.com/sanjay900/joybridge/state"
)

// OverrideSet returns a handler that installs a direct input override. Button
// names must be known and stick axes within the encoder range.
func OverrideSet(st *state.State) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		if req.Payload == "" {
			return api.ErrBadRequest("missing payload")
		}
		var o apitypes.OverrideRequest
		if err := json.Unmarshal([]byte(req.Payload), &o); err != nil {
			return api.ErrBadRequest(fmt.Sprintf("invalid JSON payload: %v", err))
		}
		if _, unknown := procon.PackButtons(o.Buttons); len(unknown) > 0 {
			return api.ErrBadRequest(fmt.Sprintf("unknown buttons: %s", strings.Join(unknown, ", ")))
		}
		for name, s := range map[string]apitypes.Stick{"leftStick": o.LeftStick, "rightStick": o.RightStick} {
			if !inRange(s.X) || !inRange(s.Y) {
				return api.ErrBadRequest(fmt.Sprintf("%s out of range [-%d, %d]", name, procon.StickRange, procon.StickRange))
			}
		}

		st.SetDirectInput(&state.DirectInput{
			Buttons:    o.Buttons,
			LeftStick:  state.StickInput{X: o.LeftStick.X, Y: o.LeftStick.Y},
			RightStick: state.StickInput{X: o.RightStick.X, Y: o.RightStick.Y},
		})
		logger.Info("direct input override set", "buttons", o.Buttons)
		return reply(res, currentOverride(st))
	}
}

// OverrideClear returns a handler that removes the direct input override.
func OverrideClear(st *state.State) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		st.SetDirectInput(nil)
		logger.Info("direct input override cleared")
		return reply(res, currentOverride(st))
	}
}

func currentOverride(st *state.State) apitypes.OverrideResponse {
	in, ok := st.DirectInput()
	if !ok {
		return apitypes.OverrideResponse{}
	}
	return apitypes.OverrideResponse{Override: &apitypes.OverrideRequest{
		Buttons:    in.Buttons,
		LeftStick:  apitypes.Stick{X: in.LeftStick.X, Y: in.LeftStick.Y},
		RightStick: apitypes.Stick{X: in.RightStick.X, Y: in.RightStick.Y},
	}}
}

func inRange(v int) bool { return v >= -procon.StickRange && v <= procon.StickRange }
