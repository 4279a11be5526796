package transport

import "github.com/sanjay900/joybridge/internal/log"

type rawLogConn struct {
	Conn
	raw log.RawLogger
}

// WithRawLog wraps c so every packet is written to raw. Received packets are
// logged as inbound.
func WithRawLog(c Conn, raw log.RawLogger) Conn {
	return &rawLogConn{Conn: c, raw: raw}
}

func (lc *rawLogConn) Recv(p []byte) (int, error) {
	n, err := lc.Conn.Recv(p)
	if n > 0 {
		lc.raw.Log(true, p[:n])
	}
	return n, err
}

func (lc *rawLogConn) Send(p []byte) error {
	err := lc.Conn.Send(p)
	if err == nil {
		lc.raw.Log(false, p)
	}
	return err
}
