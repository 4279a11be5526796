package cmd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/term"

	"github.com/sanjay900/joybridge/apitypes"
	"github.com/sanjay900/joybridge/procon"
	"github.com/sanjay900/joybridge/state"
)

const ctrlC = 0x03

// Keyboard bindings for the feed command. Sticks move at full deflection.
var (
	keyButtons = map[byte]string{
		'x': "A", 'z': "B", 'c': "X", 'v': "Y",
		'q': "L", 'e': "R", '1': "ZL", '3': "ZR",
		'-': "MINUS", '=': "PLUS", 'm': "HOME", 'p': "CAPTURE",
		't': "UP", 'g': "DOWN", 'f': "LEFT", 'h': "RIGHT",
	}
	keyLeftStick = map[byte][2]int{
		'w': {0, procon.StickRange}, 's': {0, -procon.StickRange},
		'a': {-procon.StickRange, 0}, 'd': {procon.StickRange, 0},
	}
	keyRightStick = map[byte][2]int{
		'i': {0, procon.StickRange}, 'k': {0, -procon.StickRange},
		'j': {-procon.StickRange, 0}, 'l': {procon.StickRange, 0},
	}
)

// Feed is a test producer that streams input snapshots to the ingress socket.
type Feed struct {
	URL  string        `help:"Ingress WebSocket URL" default:"ws://127.0.0.1:26214/" env:"JOYBRIDGE_FEED_URL"`
	Rate int           `help:"Snapshots sent per second" default:"100" env:"JOYBRIDGE_FEED_RATE"`
	Mode string        `help:"Input source: neutral or keyboard" default:"neutral" enum:"neutral,keyboard" env:"JOYBRIDGE_FEED_MODE"`
	Hold time.Duration `help:"How long a key press stays held" default:"150ms" env:"JOYBRIDGE_FEED_HOLD"`
	IMU  bool          `help:"Attach motion data of a controller resting flat" env:"JOYBRIDGE_FEED_IMU"`
}

// Run is called by Kong when the feed command is executed.
func (f *Feed) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	keys := newKeyState(f.Hold)
	if f.Mode == "keyboard" {
		fd := int(os.Stdin.Fd())
		if !term.IsTerminal(fd) {
			return errors.New("keyboard mode needs an interactive terminal")
		}
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("enter raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, old) }()

		ctx, stop = context.WithCancel(ctx)
		defer stop()
		go readKeys(keys, stop)
		logger.Info("Keyboard feed: WASD left stick, IJKL right stick, Ctrl-C quits")
	}
	return f.stream(ctx, keys, logger)
}

// stream sends one snapshot per period until ctx is done or the socket fails.
func (f *Feed) stream(ctx context.Context, keys *keyState, logger *slog.Logger) error {
	if f.Rate <= 0 {
		return fmt.Errorf("invalid rate %d", f.Rate)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return fmt.Errorf("dial ingress: %w", err)
	}
	defer conn.Close()
	logger.Info("Connected to ingress", "url", f.URL, "rate", f.Rate)

	readErr := make(chan error, 1)
	go func() { readErr <- printFeedback(conn, logger) }()

	var imu imuHistory
	t := time.NewTicker(time.Second / time.Duration(f.Rate))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return nil
		case err := <-readErr:
			return fmt.Errorf("ingress closed: %w", err)
		case now := <-t.C:
			if err := conn.WriteJSON(f.snapshot(keys, &imu, now)); err != nil {
				return fmt.Errorf("send snapshot: %w", err)
			}
		}
	}
}

// snapshot builds the record sent at now.
func (f *Feed) snapshot(keys *keyState, imu *imuHistory, now time.Time) apitypes.SnapshotRecord {
	rec := keys.record(now)
	if f.IMU {
		imu.push(restingSample)
		rec.IMU = ints(imu.bytes())
	}
	return rec
}

// printFeedback logs host feedback forwarded by the bridge.
func printFeedback(conn *websocket.Conn, logger *slog.Logger) error {
	for {
		var fb procon.Feedback
		if err := conn.ReadJSON(&fb); err != nil {
			return err
		}
		logger.Info("Host feedback", "kind", fb.Kind, "value", fb.Value)
	}
}

func readKeys(keys *keyState, quit func()) {
	buf := make([]byte, 16)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			quit()
			return
		}
		now := time.Now()
		for _, b := range buf[:n] {
			if b == ctrlC {
				quit()
				return
			}
			keys.press(b, now)
		}
	}
}

// keyState tracks key presses. Terminals report no key release, so a press
// counts as held for a fixed duration.
type keyState struct {
	hold time.Duration

	mu      sync.Mutex
	pressed map[byte]time.Time
}

func newKeyState(hold time.Duration) *keyState {
	return &keyState{hold: hold, pressed: map[byte]time.Time{}}
}

func (k *keyState) press(key byte, now time.Time) {
	if key >= 'A' && key <= 'Z' {
		key += 'a' - 'A'
	}
	k.mu.Lock()
	k.pressed[key] = now
	k.mu.Unlock()
}

// record builds the snapshot for the keys held at now.
func (k *keyState) record(now time.Time) apitypes.SnapshotRecord {
	var names []string
	var lx, ly, rx, ry int

	k.mu.Lock()
	for key, at := range k.pressed {
		if now.Sub(at) >= k.hold {
			delete(k.pressed, key)
			continue
		}
		if name, ok := keyButtons[key]; ok {
			names = append(names, name)
		}
		if d, ok := keyLeftStick[key]; ok {
			lx, ly = lx+d[0], ly+d[1]
		}
		if d, ok := keyRightStick[key]; ok {
			rx, ry = rx+d[0], ry+d[1]
		}
	}
	k.mu.Unlock()

	buttons, _ := procon.PackButtons(names)
	left := procon.LeftStickCalibration.Encode(lx, ly)
	right := procon.RightStickCalibration.Encode(rx, ry)
	return apitypes.SnapshotRecord{
		Buttons:    ints(buttons[:]),
		LeftStick:  ints(left[:]),
		RightStick: ints(right[:]),
	}
}

func ints(b []byte) []int {
	out := make([]int, len(b))
	for i, v := range b {
		out[i] = int(v)
	}
	return out
}

// accelOneG is one g in accelerometer units at the default +-8 g range.
const accelOneG = 4096

// imuSample is one accelerometer and gyro reading in raw sensor units.
type imuSample struct {
	accel [3]int16
	gyro  [3]int16
}

var restingSample = imuSample{accel: [3]int16{0, 0, accelOneG}}

func (s imuSample) put(b []byte) {
	for i, v := range s.accel {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(v))
	}
	for i, v := range s.gyro {
		binary.LittleEndian.PutUint16(b[6+i*2:], uint16(v))
	}
}

// imuHistory holds the three samples carried per report, newest first.
type imuHistory [3]imuSample

func (h *imuHistory) push(s imuSample) {
	h[2], h[1], h[0] = h[1], h[0], s
}

func (h *imuHistory) bytes() []byte {
	out := make([]byte, state.IMUSize)
	for i, s := range h {
		s.put(out[i*12:])
	}
	return out
}
