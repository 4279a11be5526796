package apiclient_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/sanjay900/joybridge/apiclient"
	apitypes "github.com/sanjay900/joybridge/apitypes"
)

// testClient constructs a client backed by an in-memory responder keyed by path.
// If err is non-nil, every request returns that error.
func testClient(responses map[string]string, err error) *apiclient.Client {
	return apiclient.WithTransport(apiclient.NewMockTransport(func(path string, _ any, _ map[string]string) (string, error) {
		if err != nil {
			return "", err
		}
		return responses[path], nil
	}))
}

func TestHighLevelClient(t *testing.T) {
	tests := []struct {
		name      string
		responses map[string]string
		err       error
		call      func(c *apiclient.Client) (any, error)
		want      any
		wantErr   string
	}{
		{
			name:      "ping",
			responses: map[string]string{"ping": `{"server":"joybridge","version":"dev"}`},
			call:      func(c *apiclient.Client) (any, error) { return c.Ping() },
			want:      &apitypes.PingResponse{Server: "joybridge", Version: "dev"},
		},
		{
			name:      "status crashed",
			responses: map[string]string{"status": `{"lifecycle":"crashed","lastError":"host down"}`},
			call:      func(c *apiclient.Client) (any, error) { return c.Status() },
			want:      &apitypes.StatusResponse{Lifecycle: "crashed", LastError: "host down"},
		},
		{
			name:      "snapshot",
			responses: map[string]string{"snapshot": `{"buttons":[8,0,0],"published":3}`},
			call:      func(c *apiclient.Client) (any, error) { return c.Snapshot() },
			want:      &apitypes.SnapshotRecord{Buttons: []int{8, 0, 0}, Published: 3},
		},
		{
			name:      "set override",
			responses: map[string]string{"override/set": `{"override":{"buttons":["A"],"leftStick":{"x":0,"y":0},"rightStick":{"x":0,"y":0}}}`},
			call: func(c *apiclient.Client) (any, error) {
				return c.SetOverride(apitypes.OverrideRequest{Buttons: []string{"A"}})
			},
			want: &apitypes.OverrideResponse{Override: &apitypes.OverrideRequest{Buttons: []string{"A"}}},
		},
		{
			name:      "clear override",
			responses: map[string]string{"override/clear": `{"override":null}`},
			call:      func(c *apiclient.Client) (any, error) { return c.ClearOverride() },
			want:      &apitypes.OverrideResponse{},
		},
		{
			name:      "stats",
			responses: map[string]string{"stats": `{"state":"running","ticks":264,"rate":132}`},
			call:      func(c *apiclient.Client) (any, error) { return c.Stats() },
			want:      &apitypes.StatsResponse{State: "running", Ticks: 264, Rate: 132},
		},
		{
			name:      "problem response",
			responses: map[string]string{"override/set": `{"status":400,"title":"Bad Request","detail":"unknown button \"Q\""}`},
			call: func(c *apiclient.Client) (any, error) {
				return c.SetOverride(apitypes.OverrideRequest{Buttons: []string{"Q"}})
			},
			wantErr: `400 Bad Request: unknown button "Q"`,
		},
		{
			name:    "empty response",
			call:    func(c *apiclient.Client) (any, error) { return c.Stats() },
			wantErr: "empty response",
		},
		{
			name:      "malformed response",
			responses: map[string]string{"status": `{"lifecycle":`},
			call:      func(c *apiclient.Client) (any, error) { return c.Status() },
			wantErr:   "decode",
		},
		{
			name:    "transport error",
			err:     errors.New("dial: connection refused"),
			call:    func(c *apiclient.Client) (any, error) { return c.Ping() },
			wantErr: "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.call(testClient(tt.responses, tt.err))
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProblemResponseIsApiError(t *testing.T) {
	c := testClient(map[string]string{"status": `{"status":401,"title":"Unauthorized","detail":"invalid password"}`}, nil)

	_, err := c.Status()

	var apiErr *apitypes.ApiError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
}

// sequenceClient answers the status route from replies in order, repeating the
// last one.
func sequenceClient(replies ...func() (string, error)) (*apiclient.Client, func() int) {
	var mu sync.Mutex
	calls := 0
	c := apiclient.WithTransport(apiclient.NewMockTransport(func(path string, _ any, _ map[string]string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		i := min(calls, len(replies)-1)
		calls++
		return replies[i]()
	}))
	return c, func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
}

func reply(s string) func() (string, error) { return func() (string, error) { return s, nil } }

func TestWaitReady(t *testing.T) {
	refused := func() (string, error) { return "", errors.New("dial: connection refused") }

	tests := []struct {
		name      string
		replies   []func() (string, error)
		timeout   time.Duration
		wantErr   error
		wantMsg   string
		wantCalls int
	}{
		{
			name:      "connected after initializing",
			replies:   []func() (string, error){refused, reply(`{"lifecycle":"initializing"}`), reply(`{"lifecycle":"connected"}`)},
			timeout:   time.Second,
			wantCalls: 3,
		},
		{
			name:      "crash carries diagnostic",
			replies:   []func() (string, error){reply(`{"lifecycle":"initializing"}`), reply(`{"lifecycle":"crashed","lastError":"connect failed after 5 attempts: host down"}`)},
			timeout:   time.Second,
			wantErr:   apiclient.ErrCrashed,
			wantMsg:   "host down",
			wantCalls: 2,
		},
		{
			name:    "deadline while unreachable",
			replies: []func() (string, error){refused},
			timeout: 50 * time.Millisecond,
			wantErr: context.DeadlineExceeded,
			wantMsg: "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, calls := sequenceClient(tt.replies...)
			ctx, cancel := context.WithTimeout(context.Background(), tt.timeout)
			defer cancel()

			err := c.WaitReady(ctx, 5*time.Millisecond)

			if tt.wantErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorContains(t, err, tt.wantMsg)
			}
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantCalls, calls())
			}
		})
	}
}
