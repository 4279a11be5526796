package log

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// RawLogger records every packet exchanged with the host.
type RawLogger interface {
	// Log records one packet. in is true for host to controller traffic.
	Log(in bool, data []byte)
}

type rawLogger struct {
	w   io.Writer
	mu  sync.Mutex
	now func() time.Time
}

// NewRaw creates a RawLogger writing to w. A nil writer discards everything.
func NewRaw(w io.Writer) RawLogger {
	return &rawLogger{w: w, now: time.Now}
}

// Log writes a single line with a millisecond timestamp, direction and hex dump.
func (r *rawLogger) Log(in bool, data []byte) {
	if len(data) == 0 || r.w == nil {
		return
	}
	dir := "pad->host"
	if in {
		dir = "host->pad"
	}
	line := fmt.Sprintf("%s %s %2d bytes: % x\n",
		r.now().Format("15:04:05.000"),
		dir,
		len(data),
		data)

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.w, line)
}
