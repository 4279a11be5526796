package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sanjay900/joybridge/ingress"
	"github.com/sanjay900/joybridge/internal/configpaths"
	"github.com/sanjay900/joybridge/internal/debug"
	"github.com/sanjay900/joybridge/internal/log"
	"github.com/sanjay900/joybridge/internal/server/api"
	"github.com/sanjay900/joybridge/internal/server/api/auth"
	"github.com/sanjay900/joybridge/internal/server/api/handler"
	"github.com/sanjay900/joybridge/pacer"
	"github.com/sanjay900/joybridge/procon"
	"github.com/sanjay900/joybridge/state"
	"github.com/sanjay900/joybridge/transport"
)

// Version is set at build time.
var Version = "dev"

const (
	keyFileName     = "joybridge.key.txt"
	feedbackBacklog = 16
)

// Bridge runs the ingress listener, the control API and the pacer in one process.
type Bridge struct {
	Host       string `help:"Bluetooth address of the console to pair with (AA:BB:CC:DD:EE:FF)" env:"JOYBRIDGE_HOST"`
	Relay      string `help:"Connect to a framed TCP relay at host:port instead of Bluetooth" env:"JOYBRIDGE_RELAY"`
	Controller string `help:"Bluetooth address the emulated controller reports in device info" default:"7C:BB:8A:00:00:01" env:"JOYBRIDGE_CONTROLLER_ADDRESS"`

	Ingress ingress.Config   `embed:"" prefix:"ingress."`
	Pacer   pacer.Config     `embed:"" prefix:"pacer."`
	Session transport.Config `embed:"" prefix:"session."`
	Api     api.ServerConfig `embed:"" prefix:"api."`
	Debug   debug.Config     `embed:"" prefix:"debug."`
}

// Run is called by Kong when the bridge command is executed.
func (b *Bridge) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return b.StartBridge(ctx, logger, rawLogger)
}

// dialer picks the session transport from the flags.
func (b *Bridge) dialer() (transport.Dialer, error) {
	switch {
	case b.Relay != "":
		return &transport.TCPDialer{Addr: b.Relay}, nil
	case b.Host != "":
		addr, err := transport.ParseAddress(b.Host)
		if err != nil {
			return nil, fmt.Errorf("host address: %w", err)
		}
		return transport.NewL2CAPDialer(addr), nil
	}
	return nil, errors.New("either --host or --relay must be set")
}

// StartBridge runs until ctx is done or the session is lost for good.
func (b *Bridge) StartBridge(ctx context.Context, logger *slog.Logger, rawLogger log.RawLogger) error {
	dialer, err := b.dialer()
	if err != nil {
		return err
	}
	ctrlAddr, err := transport.ParseAddress(b.Controller)
	if err != nil {
		return fmt.Errorf("controller address: %w", err)
	}
	if err := b.resolvePassword(logger); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := state.New()
	ctrl := procon.New(procon.Options{Address: ctrlAddr})

	in := ingress.New(b.Ingress, st, logger.With("component", "ingress"))
	if err := in.Start(ctx); err != nil {
		return err
	}
	defer in.Close()

	feedback := make(chan procon.Feedback, feedbackBacklog)
	ctrl.SetFeedbackCallback(func(fb procon.Feedback) {
		select {
		case feedback <- fb:
		default:
		}
	})
	go forwardFeedback(ctx, feedback, in, logger)

	session := transport.NewManager(dialer, b.Session, logger.With("component", "session"), rawLogger)
	defer session.Close()

	p := pacer.New(b.Pacer, st, ctrl, session, logger.With("component", "pacer"))

	apiSrv := api.New(b.Api, logger.With("component", "api"))
	r := apiSrv.Router()
	r.Register("ping", handler.Ping(Version))
	crashRead := make(chan struct{})
	var crashOnce sync.Once
	r.Register("status", handler.Status(st, func(s state.Status) {
		if s.Lifecycle == state.Crashed {
			crashOnce.Do(func() { close(crashRead) })
		}
	}))
	r.Register("snapshot", handler.Snapshot(st))
	r.Register("snapshot/set", handler.SnapshotSet(st))
	r.Register("override/set", handler.OverrideSet(st))
	r.Register("override/clear", handler.OverrideClear(st))
	r.Register("stats", handler.Stats(p, in, ctrl))
	if err := apiSrv.Start(); err != nil {
		return fmt.Errorf("start API server: %w", err)
	}
	defer apiSrv.Close()

	stopStats := debug.LaunchStatsView(b.Debug, logger)
	defer stopStats()

	go func() {
		if err := st.WaitReady(ctx); err == nil {
			logger.Info("Bridge ready")
		}
	}()

	logger.Info("Starting bridge", "version", Version, "rate", b.Pacer.TickRate)
	if err := p.Run(ctx); err != nil {
		b.lingerOnCrash(ctx, crashRead, logger)
		return err
	}
	return nil
}

// lingerOnCrash keeps the process, and with it the API, alive until the crash
// has been read over the status route or the linger period ends.
func (b *Bridge) lingerOnCrash(ctx context.Context, crashRead <-chan struct{}, logger *slog.Logger) {
	if b.Api.CrashLinger <= 0 {
		return
	}
	logger.Info("Serving crash status before exit", "linger", b.Api.CrashLinger)
	t := time.NewTimer(b.Api.CrashLinger)
	defer t.Stop()
	select {
	case <-crashRead:
	case <-ctx.Done():
	case <-t.C:
	}
}

// resolvePassword loads or creates the API password when authentication is
// required and none was given.
func (b *Bridge) resolvePassword(logger *slog.Logger) error {
	if !b.Api.RequireAuth || b.Api.Password != "" {
		return nil
	}
	dir, err := configpaths.DefaultConfigDir()
	if err != nil {
		return fmt.Errorf("resolve key file path: %w", err)
	}
	keyFile := filepath.Join(dir, keyFileName)
	if pwd, err := os.ReadFile(keyFile); err == nil {
		b.Api.Password = strings.TrimSpace(string(pwd))
		return nil
	}

	pwd, err := auth.GenerateKey()
	if err != nil {
		return fmt.Errorf("generate API password: %w", err)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key file dir: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(pwd), 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	b.Api.Password = pwd
	logger.Info("Generated API password", "path", keyFile)
	return nil
}

// forwardFeedback broadcasts host feedback to producers off the tick goroutine.
func forwardFeedback(ctx context.Context, feedback <-chan procon.Feedback, in *ingress.Listener, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case fb := <-feedback:
			if err := in.Broadcast(fb); err != nil {
				logger.Debug("feedback broadcast failed", "kind", fb.Kind, "error", err)
			}
		}
	}
}
