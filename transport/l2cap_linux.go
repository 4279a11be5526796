//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// L2CAPDialer connects to a paired host over Bluetooth L2CAP.
type L2CAPDialer struct {
	// Address of the host, most significant byte first.
	Address      [6]byte
	ControlPSM   uint16
	InterruptPSM uint16
}

// NewL2CAPDialer returns a dialer for the standard HID channels.
func NewL2CAPDialer(addr [6]byte) *L2CAPDialer {
	return &L2CAPDialer{Address: addr, ControlPSM: 17, InterruptPSM: 19}
}

// Dial connects the control channel, then the interrupt channel, and switches
// both to non-blocking mode.
func (d *L2CAPDialer) Dial(ctx context.Context) (Conn, Conn, error) {
	ctrl, err := connectL2CAP(ctx, d.Address, d.ControlPSM)
	if err != nil {
		return nil, nil, fmt.Errorf("control channel: %w", err)
	}
	itr, err := connectL2CAP(ctx, d.Address, d.InterruptPSM)
	if err != nil {
		_ = ctrl.Close()
		return nil, nil, fmt.Errorf("interrupt channel: %w", err)
	}
	return itr, ctrl, nil
}

func connectL2CAP(ctx context.Context, addr [6]byte, psm uint16) (*l2capConn, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_SEQPACKET, unix.BTPROTO_L2CAP)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}

	// connect(2) blocks; closing the fd is the only way to abort it.
	done := make(chan struct{})
	var closeOnce sync.Once
	closeFd := func() { closeOnce.Do(func() { _ = unix.Close(fd) }) }
	go func() {
		select {
		case <-ctx.Done():
			closeFd()
		case <-done:
		}
	}()

	err = unix.Connect(fd, &unix.SockaddrL2{PSM: psm, Addr: addr})
	close(done)
	if err != nil {
		closeFd()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("connect psm %d: %w", psm, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		closeFd()
		return nil, fmt.Errorf("set nonblock: %w", err)
	}
	return &l2capConn{fd: fd, closeFd: closeFd}, nil
}

type l2capConn struct {
	fd      int
	closeFd func()

	mu     sync.Mutex
	closed bool
}

func (c *l2capConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *l2capConn) Recv(p []byte) (int, error) {
	if c.isClosed() {
		return 0, ErrClosed
	}
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return 0, ErrWouldBlock
		}
		return 0, fmt.Errorf("l2cap recv: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (c *l2capConn) Send(p []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	_, err := unix.Write(c.fd, p)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return ErrWouldBlock
		}
		return fmt.Errorf("l2cap send: %w", err)
	}
	return nil
}

func (c *l2capConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.closeFd()
	return nil
}
