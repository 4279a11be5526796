package ingress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/sanjay900/joybridge/state"
)

// InputReportPrefix is the transport byte that precedes a full input report.
const InputReportPrefix = 0xA1

var (
	// ErrEmptyMessage is returned for zero-length frames.
	ErrEmptyMessage = errors.New("empty message")
	// ErrNoFields is returned when a message decoded but carried nothing usable.
	ErrNoFields = errors.New("message carries no usable field")
)

// Offsets of each field inside a report that starts with InputReportPrefix.
const (
	offButtons    = 4
	offLeftStick  = 7
	offRightStick = 10
	offIMU        = 14
)

// record is the named-field message shape.
type record struct {
	Buttons    []int `json:"buttons"`
	LeftStick  []int `json:"leftStick"`
	RightStick []int `json:"rightStick"`
	IMU        []int `json:"imu"`
}

// Decode converts one producer message into a snapshot. Binary frames are
// treated as raw report bytes. Text frames may hold a JSON array of report
// bytes, an object with a "raw" array, or a named-field record.
func Decode(messageType int, data []byte) (state.Snapshot, error) {
	if messageType == websocket.BinaryMessage {
		return decodeRaw(data)
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return state.Snapshot{}, ErrEmptyMessage
	}

	switch data[0] {
	case '[':
		var raw []int
		if err := json.Unmarshal(data, &raw); err != nil {
			return state.Snapshot{}, fmt.Errorf("decode raw array: %w", err)
		}
		b, err := toBytes(raw)
		if err != nil {
			return state.Snapshot{}, err
		}
		return decodeRaw(b)
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(data, &fields); err != nil {
			return state.Snapshot{}, fmt.Errorf("decode object: %w", err)
		}
		if rawMsg, ok := fields["raw"]; ok {
			var raw []int
			if err := json.Unmarshal(rawMsg, &raw); err != nil {
				return state.Snapshot{}, fmt.Errorf("decode raw field: %w", err)
			}
			b, err := toBytes(raw)
			if err != nil {
				return state.Snapshot{}, err
			}
			return decodeRaw(b)
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			return state.Snapshot{}, fmt.Errorf("decode record: %w", err)
		}
		return decodeRecord(rec)
	}
	return state.Snapshot{}, fmt.Errorf("unrecognized message starting with %q", data[0])
}

func decodeRecord(rec record) (state.Snapshot, error) {
	var snap state.Snapshot
	if b, ok := fixed(rec.Buttons, 3); ok {
		copy(snap.Buttons[:], b)
		snap.Present |= state.FieldButtons
	}
	if b, ok := fixed(rec.LeftStick, 3); ok {
		copy(snap.LeftStick[:], b)
		snap.Present |= state.FieldLeftStick
	}
	if b, ok := fixed(rec.RightStick, 3); ok {
		copy(snap.RightStick[:], b)
		snap.Present |= state.FieldRightStick
	}
	if b, ok := fixed(rec.IMU, state.IMUSize); ok {
		copy(snap.IMU[:], b)
		snap.Present |= state.FieldIMU
	}
	if snap.Present == 0 {
		return snap, ErrNoFields
	}
	return snap, nil
}

// decodeRaw reads fields at their report offsets. A payload without the
// leading prefix byte is shifted down by one. A field is taken only when the
// payload covers it completely.
func decodeRaw(p []byte) (state.Snapshot, error) {
	var snap state.Snapshot
	if len(p) == 0 {
		return snap, ErrEmptyMessage
	}
	shift := 0
	if p[0] != InputReportPrefix {
		shift = 1
	}
	field := func(off, n int) ([]byte, bool) {
		start := off - shift
		if start+n > len(p) {
			return nil, false
		}
		return p[start : start+n], true
	}

	if b, ok := field(offButtons, 3); ok {
		copy(snap.Buttons[:], b)
		snap.Present |= state.FieldButtons
	}
	if b, ok := field(offLeftStick, 3); ok {
		copy(snap.LeftStick[:], b)
		snap.Present |= state.FieldLeftStick
	}
	if b, ok := field(offRightStick, 3); ok {
		copy(snap.RightStick[:], b)
		snap.Present |= state.FieldRightStick
	}
	if b, ok := field(offIMU, state.IMUSize); ok {
		copy(snap.IMU[:], b)
		snap.Present |= state.FieldIMU
	}
	if snap.Present == 0 {
		return snap, ErrNoFields
	}
	return snap, nil
}

func fixed(v []int, n int) ([]byte, bool) {
	if len(v) != n {
		return nil, false
	}
	b, err := toBytes(v)
	if err != nil {
		return nil, false
	}
	return b, true
}

func toBytes(v []int) ([]byte, error) {
	out := make([]byte, len(v))
	for i, x := range v {
		if x < 0 || x > 0xFF {
			return nil, fmt.Errorf("byte %d out of range: %d", i, x)
		}
		out[i] = byte(x)
	}
	return out, nil
}
