package apitypes

import "fmt"

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// StatusResponse is the lifecycle of the bridge and the diagnostic recorded
// when it crashed.
type StatusResponse struct {
	Lifecycle string `json:"lifecycle"`
	LastError string `json:"lastError,omitempty"`
}

// Stick is a stick position in the range [-100, 100] on both axes.
type Stick struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// SnapshotRecord is the latest producer input. Absent fields are left
// unchanged when applied.
type SnapshotRecord struct {
	Buttons    []int  `json:"buttons,omitempty"`
	LeftStick  []int  `json:"leftStick,omitempty"`
	RightStick []int  `json:"rightStick,omitempty"`
	IMU        []int  `json:"imu,omitempty"`
	Published  uint64 `json:"published,omitempty"`
}

// OverrideRequest sets buttons and stick positions by name, replacing the
// producer input until cleared.
type OverrideRequest struct {
	Buttons    []string `json:"buttons"`
	LeftStick  Stick    `json:"leftStick"`
	RightStick Stick    `json:"rightStick"`
}

// OverrideResponse reports the override in effect, nil when none is set.
type OverrideResponse struct {
	Override *OverrideRequest `json:"override"`
}

// StatsResponse carries the tick loop counters.
type StatsResponse struct {
	State         string  `json:"state"`
	Ticks         uint64  `json:"ticks"`
	Transmissions uint64  `json:"transmissions"`
	Suppressed    uint64  `json:"suppressed"`
	KeepAlives    uint64  `json:"keepAlives"`
	WouldBlocks   uint64  `json:"wouldBlocks"`
	HostMessages  uint64  `json:"hostMessages"`
	Reconnects    uint64  `json:"reconnects"`
	MeanPeriodUs  int64   `json:"meanPeriodUs"`
	MeanWorkUs    int64   `json:"meanWorkUs"`
	Rate          float64 `json:"rate"`
	Clients       int     `json:"clients"`
	Received      uint64  `json:"received"`
	Dropped       uint64  `json:"dropped"`
	PlayerLights  int     `json:"playerLights"`
	InputMode     int     `json:"inputMode"`
}
