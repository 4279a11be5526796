package auth

import (
	"bytes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
)

// maxRecordSize bounds one encrypted record on the wire.
const maxRecordSize = 1 << 20

// Conn seals every Write into one length-prefixed record:
// u32 length, 12-byte nonce, ciphertext. Nonces are a per-direction counter.
type Conn struct {
	net.Conn
	aead cipher.AEAD

	wmu     sync.Mutex
	sendCtr uint64

	rmu     sync.Mutex
	pending bytes.Buffer
}

// WrapConn returns conn encrypted with sessionKey.
func WrapConn(conn net.Conn, sessionKey []byte) (net.Conn, error) {
	aead, err := chacha20poly1305.New(sessionKey)
	if err != nil {
		return nil, err
	}
	return &Conn{Conn: conn, aead: aead}, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	rec := make([]byte, 4+chacha20poly1305.NonceSize, 4+chacha20poly1305.NonceSize+len(p)+c.aead.Overhead())
	nonce := rec[4:]
	binary.BigEndian.PutUint64(nonce[4:], c.sendCtr)
	c.sendCtr++
	rec = c.aead.Seal(rec, nonce, p, nil)
	binary.BigEndian.PutUint32(rec[:4], uint32(len(rec)-4))

	if _, err := c.Conn.Write(rec); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *Conn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if c.pending.Len() == 0 {
		var hdr [4]byte
		if _, err := io.ReadFull(c.Conn, hdr[:]); err != nil {
			return 0, err
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n < chacha20poly1305.NonceSize || n > maxRecordSize {
			return 0, fmt.Errorf("invalid record length %d", n)
		}
		rec := make([]byte, n)
		if _, err := io.ReadFull(c.Conn, rec); err != nil {
			return 0, err
		}
		pt, err := c.aead.Open(nil, rec[:chacha20poly1305.NonceSize], rec[chacha20poly1305.NonceSize:], nil)
		if err != nil {
			return 0, err
		}
		c.pending.Write(pt)
	}
	return c.pending.Read(p)
}
