package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MaxFrameSize bounds a single relayed packet.
const MaxFrameSize = 0xFFFF

// WriteFrame writes p prefixed with its big-endian 16-bit length.
func WriteFrame(w io.Writer, p []byte) error {
	if len(p) > MaxFrameSize {
		return fmt.Errorf("frame too large: %d bytes", len(p))
	}
	buf := make([]byte, 2+len(p))
	binary.BigEndian.PutUint16(buf, uint16(len(p)))
	copy(buf[2:], p)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed packet.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	p := make([]byte, binary.BigEndian.Uint16(hdr[:]))
	if _, err := io.ReadFull(r, p); err != nil {
		return nil, err
	}
	return p, nil
}

// TCPDialer connects to a relay that forwards the interrupt channel over TCP
// using length-prefixed frames. The control channel is not relayed.
type TCPDialer struct {
	Addr string
	// WriteTimeout bounds a single Send before it reports ErrWouldBlock.
	WriteTimeout time.Duration
	// QueueSize is the number of received packets buffered for Recv.
	QueueSize int
}

// Dial connects to the relay.
func (d *TCPDialer) Dial(ctx context.Context) (Conn, Conn, error) {
	var nd net.Dialer
	c, err := nd.DialContext(ctx, "tcp", d.Addr)
	if err != nil {
		return nil, nil, fmt.Errorf("dial relay: %w", err)
	}
	return NewFramedConn(c, d.WriteTimeout, d.QueueSize), nopConn{}, nil
}

// framedConn turns a stream connection into a non-blocking packet Conn.
// A background reader queues complete frames for Recv.
type framedConn struct {
	c            net.Conn
	writeTimeout time.Duration
	packets      chan []byte

	mu      sync.Mutex
	readErr error
	closed  bool
	done    chan struct{}
}

// NewFramedConn wraps c. A zero writeTimeout defaults to 2ms and a zero
// queueSize to 64 packets.
func NewFramedConn(c net.Conn, writeTimeout time.Duration, queueSize int) Conn {
	if writeTimeout <= 0 {
		writeTimeout = 2 * time.Millisecond
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	fc := &framedConn{
		c:            c,
		writeTimeout: writeTimeout,
		packets:      make(chan []byte, queueSize),
		done:         make(chan struct{}),
	}
	go fc.readLoop()
	return fc
}

func (fc *framedConn) readLoop() {
	defer close(fc.done)
	for {
		p, err := ReadFrame(fc.c)
		if err != nil {
			fc.mu.Lock()
			if fc.closed {
				err = ErrClosed
			}
			fc.readErr = err
			fc.mu.Unlock()
			return
		}
		select {
		case fc.packets <- p:
		default:
			// queue full: the oldest packet is the least useful one
			select {
			case <-fc.packets:
			default:
			}
			fc.packets <- p
		}
	}
}

func (fc *framedConn) Recv(p []byte) (int, error) {
	select {
	case pkt := <-fc.packets:
		return copy(p, pkt), nil
	default:
	}
	select {
	case <-fc.done:
		fc.mu.Lock()
		err := fc.readErr
		fc.mu.Unlock()
		if err == nil {
			err = io.EOF
		}
		return 0, fmt.Errorf("relay recv: %w", err)
	default:
		return 0, ErrWouldBlock
	}
}

func (fc *framedConn) Send(p []byte) error {
	fc.mu.Lock()
	closed := fc.closed
	fc.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := fc.c.SetWriteDeadline(time.Now().Add(fc.writeTimeout)); err != nil {
		return fmt.Errorf("relay send: %w", err)
	}
	cw := &countingWriter{w: fc.c}
	err := WriteFrame(cw, p)
	if err == nil {
		return nil
	}
	// Nothing written yet means the frame boundary is intact.
	if cw.n == 0 && IsWouldBlock(err) {
		return ErrWouldBlock
	}
	return fmt.Errorf("relay send: %w", errors.Join(err, errPartialFrame(cw.n)))
}

func (fc *framedConn) Close() error {
	fc.mu.Lock()
	if fc.closed {
		fc.mu.Unlock()
		return nil
	}
	fc.closed = true
	fc.mu.Unlock()
	return fc.c.Close()
}

type countingWriter struct {
	w io.Writer
	n int
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += n
	return n, err
}

func errPartialFrame(n int) error {
	if n == 0 {
		return nil
	}
	return fmt.Errorf("partial frame of %d bytes written", n)
}
