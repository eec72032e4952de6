package pool

import "time"

// Listener receives session lifecycle events. Callbacks run synchronously
// on the goroutine that caused the event, outside the pool lock.
// SessionCreated fires after the environment has been applied and before
// the session is handed out.
type Listener interface {
	SessionCreated(s *Session)
	SessionAcquired(s *Session)
	SessionReleased(s *Session)
	SessionExpired(s *Session)
	SessionClosed(s *Session)
	PoolClosed()
}

// NopListener implements Listener with no-ops. Embed it to implement only
// some callbacks.
type NopListener struct{}

func (NopListener) SessionCreated(*Session)  {}
func (NopListener) SessionAcquired(*Session) {}
func (NopListener) SessionReleased(*Session) {}
func (NopListener) SessionExpired(*Session)  {}
func (NopListener) SessionClosed(*Session)   {}
func (NopListener) PoolClosed()              {}

// Metrics receives pool measurements.
type Metrics interface {
	SessionCreated()
	SessionClosed(reason string)
	EnvironmentResult(result string)
	SetSessions(idle, inUse int)
	AcquireObserved(d time.Duration, result string)
}

type nopMetrics struct{}

func (nopMetrics) SessionCreated()                       {}
func (nopMetrics) SessionClosed(string)                  {}
func (nopMetrics) EnvironmentResult(string)              {}
func (nopMetrics) SetSessions(int, int)                  {}
func (nopMetrics) AcquireObserved(time.Duration, string) {}
