package handler

import (
	"fmt"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/ingress"
	"github.com/sanjay900/joybridge/internal/server/api"
	"github.com/sanjay900/joybridge/state"
)

// Snapshot returns a handler that reports the latest producer input.
func Snapshot(st *state.State) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		return reply(res, toRecord(st.ReadWithCount()))
	}
}

// SnapshotSet returns a handler that publishes the payload as producer input.
// The payload takes any of the shapes accepted on the ingress socket.
func SnapshotSet(st *state.State) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		if req.Payload == "" {
			return api.ErrBadRequest("missing payload")
		}
		snap, err := ingress.Decode(websocket.TextMessage, []byte(req.Payload))
		if err != nil {
			return api.ErrBadRequest(fmt.Sprintf("invalid snapshot: %v", err))
		}
		n := st.Write(snap)
		logger.Debug("snapshot set through API", "fields", snap.Present)
		return reply(res, toRecord(snap, n))
	}
}

func toRecord(s state.Snapshot, published uint64) apitypes.SnapshotRecord {
	rec := apitypes.SnapshotRecord{Published: published}
	if s.Has(state.FieldButtons) {
		rec.Buttons = ints(s.Buttons[:])
	}
	if s.Has(state.FieldLeftStick) {
		rec.LeftStick = ints(s.LeftStick[:])
	}
	if s.Has(state.FieldRightStick) {
		rec.RightStick = ints(s.RightStick[:])
	}
	if s.Has(state.FieldIMU) {
		rec.IMU = ints(s.IMU[:])
	}
	return rec
}

func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}
