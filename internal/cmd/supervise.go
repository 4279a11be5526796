package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanjay900/joybridge/apiclient"
	"github.com/sanjay900/joybridge/apitypes"
)

// ErrBridgeCrashed is returned when a supervised bridge reports a crash.
var ErrBridgeCrashed = errors.New("bridge crashed")

// Supervise runs the bridge as a child process and restarts it when it crashes.
// The child is observed only through its control API.
type Supervise struct {
	Api            string        `help:"Control API address of the child bridge" default:"127.0.0.1:26215" env:"JOYBRIDGE_SUPERVISE_API"`
	Password       string        `help:"Control API password of the child bridge" env:"JOYBRIDGE_API_PASSWORD"`
	Interval       time.Duration `help:"Status polling interval" default:"1s" env:"JOYBRIDGE_SUPERVISE_INTERVAL"`
	StartupTimeout time.Duration `help:"Time the child has to become ready" default:"30s" env:"JOYBRIDGE_SUPERVISE_STARTUP_TIMEOUT"`
	MaxRestarts    int           `help:"Restarts before giving up" default:"3" env:"JOYBRIDGE_SUPERVISE_MAX_RESTARTS"`
	StopTimeout    time.Duration `help:"Grace period after interrupting the child" default:"5s" env:"JOYBRIDGE_SUPERVISE_STOP_TIMEOUT"`

	Args []string `arg:"" optional:"" passthrough:"" help:"Arguments for the bridge command"`
}

// statusClient is the part of apiclient.Client the supervisor needs.
type statusClient interface {
	WaitReady(ctx context.Context, interval time.Duration) error
	StatusCtx(ctx context.Context) (*apitypes.StatusResponse, error)
}

// Run is called by Kong when the supervise command is executed.
func (s *Supervise) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	client := apiclient.NewWithConfig(s.Api, &apiclient.Config{
		DialTimeout:  time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		Password:     s.Password,
	})
	args := append([]string{"bridge"}, s.Args...)
	return s.supervise(ctx, logger, func(ctx context.Context) error {
		return s.runChild(ctx, logger, client, exec.Command(exe, args...))
	})
}

// supervise calls run until it succeeds, ctx is done or the restart budget is spent.
func (s *Supervise) supervise(ctx context.Context, logger *slog.Logger, run func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.MaxRestarts; attempt++ {
		if attempt > 0 {
			logger.Warn("Restarting bridge", "attempt", attempt, "of", s.MaxRestarts, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.Interval):
			}
		}
		err = run(ctx)
		if err == nil || ctx.Err() != nil {
			return nil
		}
	}
	return fmt.Errorf("giving up after %d restarts: %w", s.MaxRestarts, err)
}

// runChild starts cmd, waits for it to become ready and watches it until it
// exits or crashes. The child is always gone when runChild returns.
func (s *Supervise) runChild(ctx context.Context, logger *slog.Logger, client statusClient, cmd *exec.Cmd) error {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	logger.Info("Bridge started", "pid", cmd.Process.Pid)

	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	err := s.watch(ctx, client, exited)
	if !errors.Is(err, errChildExited) {
		s.stopChild(cmd, exited, logger)
	}
	return err
}

var errChildExited = errors.New("bridge exited")

// watch blocks until the child is ready, then polls its status. It returns
// nil on ctx shutdown.
func (s *Supervise) watch(ctx context.Context, client statusClient, exited <-chan error) error {
	readyCtx, cancel := context.WithTimeout(ctx, s.StartupTimeout)
	defer cancel()
	ready := make(chan error, 1)
	go func() { ready <- client.WaitReady(readyCtx, s.Interval) }()

	select {
	case err := <-exited:
		// a crash read just before the exit still wins
		if rerr := s.await(ready); errors.Is(rerr, apiclient.ErrCrashed) {
			return fmt.Errorf("%w: %v", ErrBridgeCrashed, rerr)
		}
		return fmt.Errorf("%w during startup: %v", errChildExited, err)
	case err := <-ready:
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, apiclient.ErrCrashed) {
			return fmt.Errorf("%w: %v", ErrBridgeCrashed, err)
		}
		if err != nil {
			return fmt.Errorf("bridge not ready: %w", err)
		}
	}

	t := time.NewTicker(s.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-exited:
			return fmt.Errorf("%w: %v", errChildExited, err)
		case <-t.C:
			st, err := client.StatusCtx(ctx)
			if errors.Is(err, apiclient.ErrNotRunning) {
				return s.awaitExit(exited, err)
			}
			if err != nil {
				continue
			}
			if st.Lifecycle == "crashed" {
				return fmt.Errorf("%w: %s", ErrBridgeCrashed, st.LastError)
			}
		}
	}
}

// await returns the result on ch, or nil when none arrives within one interval.
func (s *Supervise) await(ch <-chan error) error {
	t := time.NewTimer(s.Interval)
	defer t.Stop()
	select {
	case err := <-ch:
		return err
	case <-t.C:
		return nil
	}
}

// awaitExit handles an API that stopped accepting connections while the
// child was being watched. The child is given the stop timeout to exit.
func (s *Supervise) awaitExit(exited <-chan error, apiErr error) error {
	t := time.NewTimer(s.StopTimeout)
	defer t.Stop()
	select {
	case err := <-exited:
		return fmt.Errorf("%w: %v", errChildExited, err)
	case <-t.C:
		return fmt.Errorf("bridge API gone: %w", apiErr)
	}
}

// stopChild interrupts the child and kills it after the grace period.
func (s *Supervise) stopChild(cmd *exec.Cmd, exited <-chan error, logger *slog.Logger) {
	_ = cmd.Process.Signal(os.Interrupt)
	select {
	case <-exited:
		return
	case <-time.After(s.StopTimeout):
	}
	logger.Warn("Bridge did not stop, killing", "pid", cmd.Process.Pid)
	_ = cmd.Process.Kill()
	<-exited
}
