// Package pacer drives the emulated controller: on every tick it merges the
// latest external input into the protocol, answers the host and transmits
// the report at a fixed cadence.
package pacer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sanjay900/joybridge/procon"
	"github.com/sanjay900/joybridge/state"
	"github.com/sanjay900/joybridge/transport"
)

// RunState is the state of the tick loop.
//
//	awaitingConnection -> running <-> reconnecting
//	any -> terminated
type RunState int32

const (
	AwaitingConnection RunState = iota
	Running
	Reconnecting
	Terminated
)

func (s RunState) String() string {
	switch s {
	case AwaitingConnection:
		return "awaitingConnection"
	case Running:
		return "running"
	case Reconnecting:
		return "reconnecting"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("runState(%d)", int32(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s RunState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// IMUPolicy selects when snapshot motion data replaces the protocol's own.
type IMUPolicy string

const (
	// IMUNone never copies snapshot motion data.
	IMUNone IMUPolicy = "none"
	// IMUIdle copies it only on ticks without a host message.
	IMUIdle IMUPolicy = "idle"
	// IMUAlways copies it whenever the snapshot carries it.
	IMUAlways IMUPolicy = "always"
)

// Protocol is the emulated controller driven by the pacer.
type Protocol interface {
	Fields() *procon.InputFields
	ApplyDirectInput(in state.DirectInput)
	ProcessCommands(msg []byte)
	// Report returns the next report. It stays valid until the next call.
	Report() []byte
}

// Session supplies transport handles and replaces them after a failure.
type Session interface {
	Connect(ctx context.Context) (itr, ctrl transport.Conn, err error)
	SaveConnection(ctx context.Context, cause error) (itr, ctrl transport.Conn, err error)
}

// Config represents the pacing parameters.
type Config struct {
	TickRate   int       `help:"Reports per second" default:"132" env:"JOYBRIDGE_TICK_RATE"`
	KeepAlive  int       `help:"Idle ticks before an unchanged report is sent again" default:"132" env:"JOYBRIDGE_KEEP_ALIVE"`
	RecvSize   int       `help:"Maximum size of a host message" default:"50" env:"JOYBRIDGE_RECV_SIZE"`
	IMUPolicy  IMUPolicy `help:"When producer motion data is passed through: none, idle, always" default:"none" enum:"none,idle,always" env:"JOYBRIDGE_IMU_POLICY"`
	StatsEvery int       `help:"Log tick statistics every N ticks at debug level; 0 disables" default:"1320" env:"JOYBRIDGE_STATS_EVERY"`

	HeaderSize int   `kong:"-"`
	Clock      Clock `kong:"-"`
}

func (c Config) withDefaults() Config {
	if c.TickRate <= 0 {
		c.TickRate = 132
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 132
	}
	if c.RecvSize <= 0 {
		c.RecvSize = procon.ReportSize
	}
	if c.HeaderSize <= 0 {
		c.HeaderSize = procon.HeaderSize
	}
	if c.IMUPolicy == "" {
		c.IMUPolicy = IMUNone
	}
	if c.Clock == nil {
		c.Clock = RealClock()
	}
	return c
}

// Pacer runs the tick loop. Run may be called once.
type Pacer struct {
	cfg     Config
	period  time.Duration
	st      *state.State
	proto   Protocol
	session Session
	logger  *slog.Logger

	// itr is the interrupt channel. The control channel stays with the session.
	itr       transport.Conn
	recvBuf   []byte
	cache     sendCache
	lastStart time.Time

	runState atomic.Int32
	stats    statsRecorder
}

// New creates a Pacer.
func New(cfg Config, st *state.State, proto Protocol, session Session, logger *slog.Logger) *Pacer {
	cfg = cfg.withDefaults()
	return &Pacer{
		cfg:     cfg,
		period:  time.Second / time.Duration(cfg.TickRate),
		st:      st,
		proto:   proto,
		session: session,
		logger:  logger,
		recvBuf: make([]byte, cfg.RecvSize),
	}
}

// RunState returns the current state of the loop.
func (p *Pacer) RunState() RunState { return RunState(p.runState.Load()) }

// Stats returns a copy of the loop counters.
func (p *Pacer) Stats() Stats {
	s := p.stats.snapshot()
	s.State = p.RunState()
	return s
}

// Run connects and ticks until ctx is done or the session cannot be saved.
// On return the shared state is Crashed with the reason recorded. A shutdown
// through ctx returns nil.
func (p *Pacer) Run(ctx context.Context) error {
	p.runState.Store(int32(AwaitingConnection))
	p.logger.Info("Waiting for host connection")

	itr, _, err := p.session.Connect(ctx)
	if err != nil {
		return p.terminate(ctx, fmt.Errorf("connect: %w", err))
	}
	p.itr = itr
	if err := p.st.SetLifecycle(state.Connected); err != nil {
		return p.terminate(ctx, fmt.Errorf("mark connected: %w", err))
	}
	p.runState.Store(int32(Running))
	p.logger.Info("Host connected", "rate", p.cfg.TickRate, "keepAlive", p.cfg.KeepAlive)

	for {
		if ctx.Err() != nil {
			return p.terminate(ctx, nil)
		}
		if err := p.tick(ctx); err != nil {
			return p.terminate(ctx, err)
		}
	}
}

func (p *Pacer) terminate(ctx context.Context, err error) error {
	p.runState.Store(int32(Terminated))
	if err == nil || (ctx.Err() != nil && errors.Is(err, ctx.Err())) {
		p.st.Crash(errors.New("session terminated: shutdown"))
		p.logger.Info("Pacer stopped")
		return nil
	}
	p.st.Crash(err)
	p.logger.Error("Pacer terminated", "error", err)
	return err
}

func (p *Pacer) tick(ctx context.Context) error {
	clock := p.cfg.Clock
	start := clock.Now()
	var period time.Duration
	if !p.lastStart.IsZero() {
		period = start.Sub(p.lastStart)
	}
	p.lastStart = start

	msg, err := p.receive(ctx)
	if err != nil {
		return err
	}

	p.merge(msg)
	p.proto.ProcessCommands(msg)
	report := p.proto.Report()

	if err := p.transmit(ctx, report); err != nil {
		return err
	}

	work := clock.Now().Sub(start)
	p.stats.tick(period, work)
	p.logStats()

	if wait := p.period - work; wait > 0 {
		if err := clock.Sleep(ctx, wait); err != nil && ctx.Err() == nil {
			return fmt.Errorf("sleep: %w", err)
		}
	}
	return nil
}

// receive polls the interrupt channel once. A transport error triggers a
// reconnection and yields no message for this tick.
func (p *Pacer) receive(ctx context.Context) ([]byte, error) {
	n, err := p.itr.Recv(p.recvBuf)
	switch {
	case err == nil && n > 0:
		p.stats.update(func(s *Stats) { s.HostMessages++ })
		return p.recvBuf[:n], nil
	case err == nil, transport.IsWouldBlock(err):
		return nil, nil
	}
	if err := p.reconnect(ctx, fmt.Errorf("receive: %w", err)); err != nil {
		return nil, err
	}
	return nil, nil
}

// merge copies external input into the protocol fields. A direct input
// override replaces buttons and sticks for as long as it is set.
func (p *Pacer) merge(msg []byte) {
	snap := p.st.Read()
	fields := p.proto.Fields()

	if in, ok := p.st.DirectInput(); ok {
		p.proto.ApplyDirectInput(in)
	} else {
		if snap.Has(state.FieldButtons) {
			fields.Buttons = snap.Buttons
		}
		if snap.Has(state.FieldLeftStick) {
			fields.LeftStick = snap.LeftStick
		}
		if snap.Has(state.FieldRightStick) {
			fields.RightStick = snap.RightStick
		}
	}

	if !snap.Has(state.FieldIMU) {
		return
	}
	switch p.cfg.IMUPolicy {
	case IMUAlways:
		fields.IMU = snap.IMU
	case IMUIdle:
		if msg == nil {
			fields.IMU = snap.IMU
		}
	}
}

// transmit applies the send cache to report and sends it when required.
func (p *Pacer) transmit(ctx context.Context, report []byte) error {
	if len(report) < p.cfg.HeaderSize {
		return fmt.Errorf("report of %d bytes is shorter than its header", len(report))
	}
	body := report[p.cfg.HeaderSize:]
	d := p.cache.decide(body, p.cfg.KeepAlive)
	if d == suppress {
		p.stats.update(func(s *Stats) { s.Suppressed++ })
		return nil
	}

	err := p.itr.Send(report)
	switch {
	case err == nil:
		p.cache.sent(body)
		p.stats.update(func(s *Stats) {
			s.Transmissions++
			if d == transmitKeepAlive {
				s.KeepAlives++
			}
		})
		return nil
	case transport.IsWouldBlock(err):
		p.stats.update(func(s *Stats) { s.WouldBlocks++ })
		return nil
	}
	return p.reconnect(ctx, fmt.Errorf("send: %w", err))
}

func (p *Pacer) reconnect(ctx context.Context, cause error) error {
	p.runState.Store(int32(Reconnecting))
	p.stats.update(func(s *Stats) { s.Reconnects++ })

	itr, _, err := p.session.SaveConnection(ctx, cause)
	if err != nil {
		return err
	}
	p.itr = itr
	// a fresh link has seen nothing yet
	p.cache = sendCache{}
	if err := p.st.SetLifecycle(state.Connected); err != nil {
		return fmt.Errorf("mark connected: %w", err)
	}
	p.runState.Store(int32(Running))
	p.logger.Info("Host reconnected")
	return nil
}

func (p *Pacer) logStats() {
	if p.cfg.StatsEvery <= 0 || !p.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s := p.stats.snapshot()
	if s.Ticks%uint64(p.cfg.StatsEvery) != 0 {
		return
	}
	p.logger.Debug("Tick stats",
		"ticks", s.Ticks,
		"rate", fmt.Sprintf("%.1f", s.Rate),
		"meanWork", s.MeanWork,
		"sent", s.Transmissions,
		"suppressed", s.Suppressed,
		"keepAlives", s.KeepAlives,
		"wouldBlocks", s.WouldBlocks)
}
