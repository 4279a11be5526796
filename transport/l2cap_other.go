//go:build !linux

package transport

import "context"

// L2CAPDialer connects to a paired host over Bluetooth L2CAP. Only linux is supported.
type L2CAPDialer struct {
	Address      [6]byte
	ControlPSM   uint16
	InterruptPSM uint16
}

// NewL2CAPDialer returns a dialer for the standard HID channels.
func NewL2CAPDialer(addr [6]byte) *L2CAPDialer {
	return &L2CAPDialer{Address: addr, ControlPSM: 17, InterruptPSM: 19}
}

// Dial always fails with ErrUnsupported.
func (d *L2CAPDialer) Dial(ctx context.Context) (Conn, Conn, error) {
	return nil, nil, ErrUnsupported
}
