// Package pool manages a bounded set of host sessions.
//
// Every session the pool establishes has the configured environment (the
// library list) applied exactly once, on the goroutine that created it and
// before any caller sees it. Released sessions keep that environment and
// are reused as is.
//
//	p, err := pool.New(dialer, pool.Config{
//	    Address:     "host.example.com",
//	    Credentials: creds,
//	    MaxSessions: 4,
//	    Environment: domain.ParseLibraryList("APPLIB QGPL QTEMP"),
//	})
//	s, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer p.Release(s)
//
// Acquire blocks while MaxSessions sessions are checked out. Connection
// failures are returned to the caller; the pool never retries.
package pool
