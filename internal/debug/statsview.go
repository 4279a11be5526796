// Package debug serves optional runtime diagnostics.
//
// When enabled, runtime charts are served at <addr>/debug/statsview and the
// standard pprof handlers at <addr>/debug/pprof/.
package debug

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const statsviewPath = "/debug/statsview"

// Config represents the debug flags of the bridge command.
type Config struct {
	StatsviewAddr string `help:"Serve runtime charts at this address (e.g. localhost:12600); empty disables" env:"JOYBRIDGE_DEBUG_STATSVIEW_ADDR"`
}

// LaunchStatsView starts the runtime viewer in the background when an address
// is configured. The returned func stops it.
func LaunchStatsView(cfg Config, logger *slog.Logger) (stop func()) {
	if cfg.StatsviewAddr == "" {
		return func() {}
	}
	viewer.SetConfiguration(viewer.WithAddr(cfg.StatsviewAddr))
	mgr := statsview.New()
	go mgr.Start()

	logger.Info("Stats viewer available", "url", "http://"+cfg.StatsviewAddr+statsviewPath)
	return mgr.Stop
}
