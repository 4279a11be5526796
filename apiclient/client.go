package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apitypes "github.com/sanjay900/joybridge/apitypes"
)

// DefaultPollInterval is the status polling interval used by WaitReady.
const DefaultPollInterval = time.Second

// ErrCrashed is returned by WaitReady when the bridge reports a crash before
// becoming connected.
var ErrCrashed = errors.New("bridge crashed during startup")

// Client provides a high-level interface to the joybridge API, handling request
// formatting, response parsing, and error handling.
type Client struct{ transport *Transport }

// New constructs a high-level API client using the internal low-level Transport.
// The addr parameter specifies the TCP address (host:port) of the API server.
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithPassword constructs a client that authenticates with the given password.
func NewWithPassword(addr, password string) *Client {
	return &Client{transport: NewTransportWithPassword(addr, password)}
}

// NewWithConfig constructs a client with custom transport timeouts.
func NewWithConfig(addr string, cfg *Config) *Client {
	return &Client{transport: NewTransportWithConfig(addr, cfg)}
}

// WithTransport constructs a Client using a custom Transport implementation.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the version and identity of the server.
func (c *Client) Ping() (*apitypes.PingResponse, error) {
	return c.PingCtx(context.Background())
}

// PingCtx is the context-aware version of Ping.
func (c *Client) PingCtx(ctx context.Context) (*apitypes.PingResponse, error) {
	return do[apitypes.PingResponse](ctx, c, "ping", nil)
}

// Status returns the lifecycle of the bridge and its last error.
func (c *Client) Status() (*apitypes.StatusResponse, error) {
	return c.StatusCtx(context.Background())
}

func (c *Client) StatusCtx(ctx context.Context) (*apitypes.StatusResponse, error) {
	return do[apitypes.StatusResponse](ctx, c, "status", nil)
}

// Snapshot returns the latest producer input.
func (c *Client) Snapshot() (*apitypes.SnapshotRecord, error) {
	return c.SnapshotCtx(context.Background())
}

func (c *Client) SnapshotCtx(ctx context.Context) (*apitypes.SnapshotRecord, error) {
	return do[apitypes.SnapshotRecord](ctx, c, "snapshot", nil)
}

// SetSnapshot publishes rec as the latest input, as if a producer had sent it.
func (c *Client) SetSnapshot(rec apitypes.SnapshotRecord) (*apitypes.SnapshotRecord, error) {
	return c.SetSnapshotCtx(context.Background(), rec)
}

func (c *Client) SetSnapshotCtx(ctx context.Context, rec apitypes.SnapshotRecord) (*apitypes.SnapshotRecord, error) {
	rec.Published = 0
	return do[apitypes.SnapshotRecord](ctx, c, "snapshot/set", rec)
}

// SetOverride replaces producer buttons and sticks until ClearOverride is called.
func (c *Client) SetOverride(o apitypes.OverrideRequest) (*apitypes.OverrideResponse, error) {
	return c.SetOverrideCtx(context.Background(), o)
}

func (c *Client) SetOverrideCtx(ctx context.Context, o apitypes.OverrideRequest) (*apitypes.OverrideResponse, error) {
	return do[apitypes.OverrideResponse](ctx, c, "override/set", o)
}

// ClearOverride removes the direct input override.
func (c *Client) ClearOverride() (*apitypes.OverrideResponse, error) {
	return c.ClearOverrideCtx(context.Background())
}

func (c *Client) ClearOverrideCtx(ctx context.Context) (*apitypes.OverrideResponse, error) {
	return do[apitypes.OverrideResponse](ctx, c, "override/clear", nil)
}

// Stats returns the tick loop counters.
func (c *Client) Stats() (*apitypes.StatsResponse, error) {
	return c.StatsCtx(context.Background())
}

func (c *Client) StatsCtx(ctx context.Context) (*apitypes.StatsResponse, error) {
	return do[apitypes.StatsResponse](ctx, c, "stats", nil)
}

// WaitReady polls the status route every interval until the bridge is
// connected. A crash before that returns an error wrapping ErrCrashed with the
// recorded diagnostic. Transport errors are retried until ctx is done, since
// the server may not be listening yet.
func (c *Client) WaitReady(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	var lastErr error
	for {
		st, err := c.StatusCtx(ctx)
		switch {
		case err != nil:
			lastErr = err
		case st.Lifecycle == "connected":
			return nil
		case st.Lifecycle == "crashed":
			return fmt.Errorf("%w: %s", ErrCrashed, st.LastError)
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("wait ready: %w", errors.Join(ctx.Err(), lastErr))
			}
			return fmt.Errorf("wait ready: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func do[T any](ctx context.Context, c *Client, path string, payload any) (*T, error) {
	raw, err := c.transport.DoCtx(ctx, path, payload, nil)
	if err != nil {
		return nil, err
	}
	return parse[T](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem apitypes.ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
