// Package transport provides the non-blocking packet channels between the
// emulated controller and the host, and the policy for reconnecting them.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"
)

var (
	// ErrWouldBlock is returned by Recv when no packet is pending and by Send
	// when the channel cannot take a packet right now. It is not a failure.
	ErrWouldBlock = errors.New("operation would block")
	// ErrUnsupported is returned by dialers that cannot run on this platform.
	ErrUnsupported = errors.New("transport not supported on this platform")
	// ErrClosed is returned by operations on a closed Conn.
	ErrClosed = errors.New("connection closed")
)

// Conn is a non-blocking packet channel. Recv and Send never wait for the peer.
type Conn interface {
	// Recv reads at most len(p) bytes of one pending packet.
	Recv(p []byte) (int, error)
	// Send transmits p as one packet.
	Send(p []byte) error
	Close() error
}

// Dialer opens the interrupt and control channels of one session.
type Dialer interface {
	Dial(ctx context.Context) (itr, ctrl Conn, err error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context) (itr, ctrl Conn, err error)

func (f DialerFunc) Dial(ctx context.Context) (Conn, Conn, error) { return f(ctx) }

// IsWouldBlock reports whether err only means the operation could not
// complete without waiting.
func IsWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrWouldBlock) || errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// ParseAddress parses a Bluetooth address of the form AA:BB:CC:DD:EE:FF.
func ParseAddress(s string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("invalid bluetooth address %q", s)
	}
	for i, p := range parts {
		b, err := hex.DecodeString(p)
		if err != nil || len(b) != 1 {
			return out, fmt.Errorf("invalid bluetooth address %q", s)
		}
		out[i] = b[0]
	}
	return out, nil
}

// nopConn discards sends and never has anything to receive.
type nopConn struct{}

func (nopConn) Recv([]byte) (int, error) { return 0, ErrWouldBlock }
func (nopConn) Send([]byte) error        { return nil }
func (nopConn) Close() error             { return nil }
