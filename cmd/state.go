package cmd

import (
	"fmt"
	"sync"
	"time"
)

// sessionMu guards the browser session shared by MCP tool calls.
// Only one tool call may hold it at a time.
var sessionMu sync.Mutex

// sessionLockTimeout is how long a call waits for the session.
var sessionLockTimeout = 30 * time.Second

// withSession serialises access to the shared browser session.
// It waits up to sessionLockTimeout for the lock; afterwards it returns an
// error so the caller can report "session busy".
func withSession[R any](fn func() (R, error)) (R, error) {
	timeout := sessionLockTimeout
	var zero R

	locked := make(chan struct{})
	go func() {
		sessionMu.Lock()
		close(locked)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-locked:
		defer sessionMu.Unlock()
		return fn()
	case <-timer.C:
		// Release the lock once the waiter finally gets it.
		go func() {
			<-locked
			sessionMu.Unlock()
		}()
		return zero, fmt.Errorf("session busy: could not acquire lock within %s", timeout)
	}
}
