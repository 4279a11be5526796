// Package state holds the input state shared between the ingress listener,
// the API server and the report pacer.
package state

import (
	"context"
	"sync"
	"sync/atomic"
)

// Status is a consistent view of the lifecycle and its diagnostic.
type Status struct {
	Lifecycle Lifecycle `json:"lifecycle"`
	LastError string    `json:"lastError,omitempty"`
}

// State is the process-wide controller state. It is created once and handed to
// every component that needs it; there is no package-level instance.
//
// The lifecycle is a single atomic word and may be read without locking. The
// snapshot, the direct input override and the last error are guarded by mu.
type State struct {
	lifecycle atomic.Int32

	mu        sync.Mutex
	lastError string
	snapshot  Snapshot
	override  *DirectInput
	published uint64

	ready     chan struct{}
	readyOnce sync.Once
}

// New returns a State in the Initializing lifecycle with an empty snapshot.
func New() *State {
	return &State{
		ready: make(chan struct{}),
	}
}

// Read returns the most recently written snapshot. It never blocks on the writer
// for longer than a copy.
func (s *State) Read() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// ReadWithCount returns the latest snapshot together with the number of
// writes up to and including it.
func (s *State) ReadWithCount() (Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot, s.published
}

// Write replaces the snapshot and returns its write count. Earlier unread
// snapshots are discarded.
func (s *State) Write(snap Snapshot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snap
	s.published++
	return s.published
}

// Published returns how many snapshots have been written so far.
func (s *State) Published() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// Lifecycle returns the current lifecycle.
func (s *State) Lifecycle() Lifecycle {
	return Lifecycle(s.lifecycle.Load())
}

// SetLifecycle moves the lifecycle forward. Setting the current value again is a
// no-op; moving backwards or out of Crashed returns ErrInvalidTransition.
func (s *State) SetLifecycle(l Lifecycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(l)
}

func (s *State) transitionLocked(to Lifecycle) error {
	for {
		from := Lifecycle(s.lifecycle.Load())
		if from == to {
			return nil
		}
		if !canTransition(from, to) {
			return ErrInvalidTransition
		}
		if s.lifecycle.CompareAndSwap(int32(from), int32(to)) {
			s.readyOnce.Do(func() { close(s.ready) })
			return nil
		}
	}
}

// SetError records a diagnostic without changing the lifecycle.
func (s *State) SetError(diagnostic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = diagnostic
}

// LastError returns the last recorded diagnostic.
func (s *State) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastError
}

// Crash records err as the diagnostic and moves to Crashed. It reports whether
// this call performed the transition; later calls leave the first diagnostic in place.
func (s *State) Crash(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Lifecycle(s.lifecycle.Load()) == Crashed {
		return false
	}
	diag := "unknown error"
	if err != nil {
		diag = err.Error()
	}
	s.lastError = diag
	return s.transitionLocked(Crashed) == nil
}

// Status returns lifecycle and last error read together.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Lifecycle: Lifecycle(s.lifecycle.Load()), LastError: s.lastError}
}

// DirectInput returns the override and whether one is set.
func (s *State) DirectInput() (DirectInput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override == nil {
		return DirectInput{}, false
	}
	return s.override.clone(), true
}

// SetDirectInput installs an override; nil clears it.
func (s *State) SetDirectInput(in *DirectInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in == nil {
		s.override = nil
		return
	}
	c := in.clone()
	s.override = &c
}

// Ready returns a channel that is closed once the lifecycle leaves Initializing.
func (s *State) Ready() <-chan struct{} { return s.ready }

// WaitReady blocks until the lifecycle leaves Initializing. It returns nil once
// Connected and a *CrashError carrying the diagnostic if the session crashed first.
func (s *State) WaitReady(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.ready:
	}
	st := s.Status()
	if st.Lifecycle == Crashed {
		return &CrashError{Diagnostic: st.LastError}
	}
	return nil
}
