package state_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanjay900/joybridge/state"
)

func TestLifecycleTransitions(t *testing.T) {
	type step struct {
		to      state.Lifecycle
		wantErr error
	}
	tests := []struct {
		name  string
		steps []step
		final state.Lifecycle
	}{
		{
			name:  "initializing to connected",
			steps: []step{{to: state.Connected}},
			final: state.Connected,
		},
		{
			name:  "initializing to crashed",
			steps: []step{{to: state.Crashed}},
			final: state.Crashed,
		},
		{
			name:  "connected to crashed",
			steps: []step{{to: state.Connected}, {to: state.Crashed}},
			final: state.Crashed,
		},
		{
			name:  "connected again is a no-op",
			steps: []step{{to: state.Connected}, {to: state.Connected}},
			final: state.Connected,
		},
		{
			name:  "connected back to initializing",
			steps: []step{{to: state.Connected}, {to: state.Initializing, wantErr: state.ErrInvalidTransition}},
			final: state.Connected,
		},
		{
			name:  "crashed never reverses",
			steps: []step{{to: state.Crashed}, {to: state.Connected, wantErr: state.ErrInvalidTransition}},
			final: state.Crashed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := state.New()
			for _, st := range tt.steps {
				err := s.SetLifecycle(st.to)
				if st.wantErr != nil {
					assert.ErrorIs(t, err, st.wantErr)
				} else {
					assert.NoError(t, err)
				}
			}
			assert.Equal(t, tt.final, s.Lifecycle())
		})
	}
}

func TestLifecycleText(t *testing.T) {
	for _, l := range []state.Lifecycle{state.Initializing, state.Connected, state.Crashed} {
		b, err := l.MarshalText()
		require.NoError(t, err)
		var back state.Lifecycle
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, l, back)
	}
	_, err := state.ParseLifecycle("paused")
	assert.Error(t, err)
}

func TestCrashRecordsFirstDiagnosticOnly(t *testing.T) {
	s := state.New()
	require.NoError(t, s.SetLifecycle(state.Connected))

	assert.True(t, s.Crash(errors.New("link lost")))
	assert.False(t, s.Crash(errors.New("second failure")))

	st := s.Status()
	assert.Equal(t, state.Crashed, st.Lifecycle)
	assert.Equal(t, "link lost", st.LastError)
}

func TestLastWriteWins(t *testing.T) {
	s := state.New()
	w1 := state.Snapshot{Present: state.FieldButtons | state.FieldLeftStick, Buttons: [3]byte{1, 1, 1}, LeftStick: [3]byte{1, 1, 1}}
	w2 := state.Snapshot{Present: state.FieldButtons, Buttons: [3]byte{2, 2, 2}}

	s.Write(w1)
	s.Write(w2)

	assert.Equal(t, w2, s.Read())
	assert.Equal(t, uint64(2), s.Published())
}

func TestConcurrentReadsNeverTear(t *testing.T) {
	s := state.New()
	const writes = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < writes; i++ {
			v := byte(i)
			snap := state.Snapshot{Present: state.FieldButtons | state.FieldIMU}
			snap.Buttons = [3]byte{v, v, v}
			for j := range snap.IMU {
				snap.IMU[j] = v
			}
			s.Write(snap)
		}
	}()

	for i := 0; i < writes; i++ {
		snap := s.Read()
		v := snap.Buttons[0]
		for _, b := range snap.Buttons {
			require.Equal(t, v, b)
		}
		for _, b := range snap.IMU {
			require.Equal(t, v, b)
		}
	}
	wg.Wait()
}

func TestReadWithCountPairsSnapshotAndCount(t *testing.T) {
	s := state.New()
	const writes = 2000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= writes; i++ {
			n := s.Write(state.Snapshot{Present: state.FieldButtons, Buttons: [3]byte{byte(i), byte(i >> 8), 0}})
			assert.Equal(t, uint64(i), n)
		}
	}()

	for i := 0; i < writes; i++ {
		snap, n := s.ReadWithCount()
		got := uint64(snap.Buttons[0]) | uint64(snap.Buttons[1])<<8
		require.Equal(t, n, got)
	}
	wg.Wait()
}

func TestDirectInputIsCopied(t *testing.T) {
	s := state.New()
	_, ok := s.DirectInput()
	assert.False(t, ok)

	in := &state.DirectInput{Buttons: []string{"A"}, LeftStick: state.StickInput{X: 100}}
	s.SetDirectInput(in)
	in.Buttons[0] = "B"

	got, ok := s.DirectInput()
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, got.Buttons)
	assert.Equal(t, 100, got.LeftStick.X)

	s.SetDirectInput(nil)
	_, ok = s.DirectInput()
	assert.False(t, ok)
}

func TestWaitReady(t *testing.T) {
	t.Run("connected", func(t *testing.T) {
		s := state.New()
		go func() {
			time.Sleep(10 * time.Millisecond)
			_ = s.SetLifecycle(state.Connected)
		}()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NoError(t, s.WaitReady(ctx))
	})

	t.Run("crashed before connect", func(t *testing.T) {
		s := state.New()
		s.Crash(errors.New("no adapter"))
		err := s.WaitReady(context.Background())
		var crash *state.CrashError
		require.ErrorAs(t, err, &crash)
		assert.Equal(t, "no adapter", crash.Diagnostic)
	})

	t.Run("context cancelled", func(t *testing.T) {
		s := state.New()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, s.WaitReady(ctx), context.Canceled)
	})
}
