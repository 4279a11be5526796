package handler

import (
	"log/slog"

	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/internal/server/api"
	"github.com/sanjay900/joybridge/pacer"
	"github.com/sanjay900/joybridge/procon"
)

// PacerStats is implemented by *pacer.Pacer.
type PacerStats interface {
	Stats() pacer.Stats
}

// IngressStats is implemented by *ingress.Listener.
type IngressStats interface {
	Clients() int
	Counters() (received, dropped uint64)
}

// ControllerStatus is implemented by *procon.Controller.
type ControllerStatus interface {
	PlayerLights() byte
	InputMode() procon.InputMode
}

// Stats returns a handler that reports tick loop counters. in and ctrl may be nil.
func Stats(p PacerStats, in IngressStats, ctrl ControllerStatus) api.HandlerFunc {
	return func(req *api.Request, res *api.Response, logger *slog.Logger) error {
		s := p.Stats()
		out := apitypes.StatsResponse{
			State:         s.State.String(),
			Ticks:         s.Ticks,
			Transmissions: s.Transmissions,
			Suppressed:    s.Suppressed,
			KeepAlives:    s.KeepAlives,
			WouldBlocks:   s.WouldBlocks,
			HostMessages:  s.HostMessages,
			Reconnects:    s.Reconnects,
			MeanPeriodUs:  s.MeanPeriod.Microseconds(),
			MeanWorkUs:    s.MeanWork.Microseconds(),
			Rate:          s.Rate,
		}
		if in != nil {
			out.Clients = in.Clients()
			out.Received, out.Dropped = in.Counters()
		}
		if ctrl != nil {
			out.PlayerLights = int(ctrl.PlayerLights())
			out.InputMode = int(ctrl.InputMode())
		}
		return reply(res, out)
	}
}
