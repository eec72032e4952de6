package ports

import (
	"context"

	"github.com/bft-labs/hostcall/internal/domain"
)

// Credentials identify the user a session signs on as.
type Credentials struct {
	User     string
	Password string
}

// Dialer establishes host sessions.
type Dialer interface {
	// Dial opens a new session. Implementations must not retry.
	Dial(ctx context.Context, address string, creds Credentials) (HostSession, error)
}

// HostSession is a live connection to the host.
type HostSession interface {
	// ID returns an identifier for diagnostics; it may be empty.
	ID() string

	// RunCommand executes a host command. ok is false when the command ran
	// but reported failure; msgs then holds the host's diagnostics. A
	// non-nil error means the command could not be run at all.
	RunCommand(ctx context.Context, text string) (ok bool, msgs []domain.Message, err error)

	// CallProcedure invokes a procedure of a service program with the
	// parameters held by call.Frame. Outputs are written back into the frame.
	CallProcedure(ctx context.Context, call ProcedureCall) ([]domain.Message, error)

	// DisconnectAllServices ends every host service attached to the session.
	DisconnectAllServices()
}

// ProcedureCall describes one procedure invocation.
type ProcedureCall struct {
	// ProgramPath is the fully qualified host path, e.g.
	// /QSYS.LIB/MYLIB.LIB/MYPGM.SRVPGM.
	ProgramPath string

	// Procedure is the exported procedure name.
	Procedure string

	Frame CallFrame
}
