package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sanjay900/joybridge/internal/log"
)

// Config represents the reconnection policy.
type Config struct {
	Attempts    int           `help:"Connection attempts before the session is given up" default:"5" env:"JOYBRIDGE_RECONNECT_ATTEMPTS"`
	Backoff     time.Duration `help:"Delay between connection attempts" default:"1s" env:"JOYBRIDGE_RECONNECT_BACKOFF"`
	DialTimeout time.Duration `help:"Timeout of a single connection attempt" default:"5s" env:"JOYBRIDGE_DIAL_TIMEOUT"`
}

// ReconnectError is returned when every connection attempt failed.
type ReconnectError struct {
	Attempts int
	// Cause is the transport error that triggered the reconnection, nil for the initial connect.
	Cause error
	// Last is the error of the final attempt.
	Last error
}

func (e *ReconnectError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("connect failed after %d attempts: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("reconnect failed after %d attempts (cause: %v): %v", e.Attempts, e.Cause, e.Last)
}

func (e *ReconnectError) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Last != nil {
		errs = append(errs, e.Last)
	}
	return errs
}

// Manager owns the session handles and re-establishes them with a bounded
// number of attempts.
type Manager struct {
	dialer Dialer
	cfg    Config
	logger *slog.Logger
	raw    log.RawLogger

	mu         sync.Mutex
	itr, ctrl  Conn
	reconnects int
}

// NewManager creates a Manager. raw may be nil.
func NewManager(d Dialer, cfg Config, logger *slog.Logger, raw log.RawLogger) *Manager {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	return &Manager{dialer: d, cfg: cfg, logger: logger, raw: raw}
}

// Connect establishes the first session.
func (m *Manager) Connect(ctx context.Context) (itr, ctrl Conn, err error) {
	return m.establish(ctx, nil)
}

// SaveConnection closes the stale handles and tries to establish a fresh
// session. It gives up after the configured number of attempts.
func (m *Manager) SaveConnection(ctx context.Context, cause error) (itr, ctrl Conn, err error) {
	m.logger.Warn("Transport failed, reconnecting", "error", cause, "attempts", m.cfg.Attempts)
	if err := m.closeHandles(); err != nil {
		m.logger.Debug("Closing stale handles", "error", err)
	}
	m.mu.Lock()
	m.reconnects++
	m.mu.Unlock()
	return m.establish(ctx, cause)
}

// Reconnects returns how many times SaveConnection was called.
func (m *Manager) Reconnects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnects
}

// Close releases the current handles.
func (m *Manager) Close() error {
	return m.closeHandles()
}

func (m *Manager) closeHandles() error {
	m.mu.Lock()
	itr, ctrl := m.itr, m.ctrl
	m.itr, m.ctrl = nil, nil
	m.mu.Unlock()

	var errs []error
	if itr != nil {
		errs = append(errs, itr.Close())
	}
	if ctrl != nil {
		errs = append(errs, ctrl.Close())
	}
	return errors.Join(errs...)
}

func (m *Manager) establish(ctx context.Context, cause error) (Conn, Conn, error) {
	var last error
	tried := 0
	for attempt := 1; attempt <= m.cfg.Attempts; attempt++ {
		if attempt > 1 && m.cfg.Backoff > 0 {
			t := time.NewTimer(m.cfg.Backoff)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, nil, &ReconnectError{Attempts: attempt - 1, Cause: cause, Last: ctx.Err()}
			case <-t.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, &ReconnectError{Attempts: attempt - 1, Cause: cause, Last: err}
		}

		dialCtx := ctx
		cancel := func() {}
		if m.cfg.DialTimeout > 0 {
			dialCtx, cancel = context.WithTimeout(ctx, m.cfg.DialTimeout)
		}
		itr, ctrl, err := m.dialer.Dial(dialCtx)
		cancel()
		tried++
		if err != nil {
			last = err
			m.logger.Info("Connection attempt failed", "attempt", attempt, "of", m.cfg.Attempts, "error", err)
			if errors.Is(err, ErrUnsupported) {
				break
			}
			continue
		}

		if m.raw != nil {
			itr = WithRawLog(itr, m.raw)
		}
		m.mu.Lock()
		m.itr, m.ctrl = itr, ctrl
		m.mu.Unlock()
		m.logger.Info("Connected", "attempt", attempt)
		return itr, ctrl, nil
	}
	return nil, nil, &ReconnectError{Attempts: tried, Cause: cause, Last: last}
}
