package pacer

import "bytes"

// sendCache remembers the body of the last transmitted report and how many
// ticks passed since. It changes only when a transmission succeeds.
type sendCache struct {
	body  []byte
	valid bool
	idle  int
}

// decision is the outcome of consulting the cache for one report.
type decision int

const (
	suppress decision = iota
	transmitChanged
	transmitKeepAlive
)

// decide reports whether body must be transmitted. Unchanged bodies count an
// idle tick; once keepAlive idle ticks accumulate the body is sent anyway.
func (c *sendCache) decide(body []byte, keepAlive int) decision {
	if !c.valid || !bytes.Equal(body, c.body) {
		return transmitChanged
	}
	c.idle++
	if c.idle >= keepAlive {
		return transmitKeepAlive
	}
	return suppress
}

// sent records a successful transmission of body.
func (c *sendCache) sent(body []byte) {
	c.body = append(c.body[:0], body...)
	c.valid = true
	c.idle = 0
}
