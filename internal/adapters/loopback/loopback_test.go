package loopback

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/ports"
)

func dial(t *testing.T, h *Host) *Session {
	t.Helper()
	s, err := h.Dial(context.Background(), "loopback", ports.Credentials{User: "APPUSER"})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	return s.(*Session)
}

func TestHost_Dial(t *testing.T) {
	h := New()
	a, b := dial(t, h), dial(t, h)
	if a.ID() == b.ID() {
		t.Errorf("sessions share id %q", a.ID())
	}
	if h.Dials() != 2 {
		t.Errorf("Dials() = %d, want 2", h.Dials())
	}

	boom := errors.New("connection refused")
	h.FailDial(boom)
	if _, err := h.Dial(context.Background(), "x", ports.Credentials{}); !errors.Is(err, boom) {
		t.Errorf("Dial() error = %v, want %v", err, boom)
	}
	h.FailDial(nil)
	dial(t, h)
	if h.Dials() != 3 {
		t.Errorf("Dials() = %d, want 3", h.Dials())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Dial(ctx, "x", ports.Credentials{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Dial(canceled) error = %v", err)
	}
}

func TestSession_RunCommand(t *testing.T) {
	h := New()
	s := dial(t, h)
	ctx := context.Background()

	ok, msgs, err := s.RunCommand(ctx, "CHGLIBL LIBL(APPLIB QGPL)")
	if err != nil || !ok || len(msgs) != 0 {
		t.Fatalf("CHGLIBL = %v, %v, %v", ok, msgs, err)
	}
	if got := s.LibraryList(); !reflect.DeepEqual(got, []string{"APPLIB", "QGPL"}) {
		t.Errorf("LibraryList() = %v", got)
	}

	ok, msgs, err = s.RunCommand(ctx, "CHGLIBL QGPL")
	if err != nil || ok || len(msgs) != 1 || msgs[0].ID != "CPD0043" {
		t.Errorf("CHGLIBL without LIBL = %v, %v, %v", ok, msgs, err)
	}

	ok, msgs, err = s.RunCommand(ctx, "dspjob")
	if err != nil || ok || len(msgs) != 1 || msgs[0].ID != "CPD0030" {
		t.Errorf("unknown command = %v, %v, %v", ok, msgs, err)
	}

	if got := len(s.History()); got != 3 {
		t.Errorf("History() has %d entries, want 3", got)
	}
	if h.Commands() != 3 {
		t.Errorf("Commands() = %d, want 3", h.Commands())
	}
}

func TestHost_OnCommand(t *testing.T) {
	h := New()
	down := errors.New("host down")
	h.OnCommand(func(sessionID, text string) (bool, bool, []domain.Message, error) {
		if text == "FAIL" {
			return true, false, nil, down
		}
		return false, false, nil, nil
	})
	s := dial(t, h)

	if _, _, err := s.RunCommand(context.Background(), "FAIL"); !errors.Is(err, down) {
		t.Errorf("FAIL error = %v, want %v", err, down)
	}
	ok, _, err := s.RunCommand(context.Background(), "CHGLIBL LIBL(QGPL)")
	if err != nil || !ok {
		t.Errorf("fall-through CHGLIBL = %v, %v", ok, err)
	}
}

type mapFrame map[string]domain.Value

func (f mapFrame) Lookup(p domain.Path) (domain.Slot, bool) {
	return domain.Slot{Path: p.String(), Kind: domain.KindString}, true
}

func (f mapFrame) SetValue(p domain.Path, _ []int, v domain.Value) error {
	f[p.String()] = v
	return nil
}

func (f mapFrame) Value(p domain.Path, _ []int) (domain.Value, error) {
	v, ok := f[p.String()]
	if !ok {
		return nil, domain.ErrNoValue
	}
	return v, nil
}

func TestSession_CallProcedure(t *testing.T) {
	h := New()
	h.Handle("/qsys.lib/app.lib/svc.srvpgm", "PING", func(ctx context.Context, call ports.ProcedureCall) ([]domain.Message, error) {
		return nil, call.Frame.SetValue(domain.MustParsePath("reply"), nil, domain.StringValue("PONG"))
	})
	s := dial(t, h)
	frame := mapFrame{}

	_, err := s.CallProcedure(context.Background(), ports.ProcedureCall{
		ProgramPath: "/QSYS.LIB/APP.LIB/SVC.SRVPGM",
		Procedure:   "PING",
		Frame:       frame,
	})
	if err != nil {
		t.Fatalf("CallProcedure() error = %v", err)
	}
	if frame["reply"] != domain.StringValue("PONG") {
		t.Errorf("reply = %v, want PONG", frame["reply"])
	}

	msgs, err := s.CallProcedure(context.Background(), ports.ProcedureCall{
		ProgramPath: "/QSYS.LIB/APP.LIB/SVC.SRVPGM",
		Procedure:   "OTHER",
		Frame:       frame,
	})
	if !errors.Is(err, ErrProgramNotFound) || len(msgs) != 1 {
		t.Errorf("unhandled call = %v, %v", msgs, err)
	}

	h.HandleFallback(Echo)
	if _, err := s.CallProcedure(context.Background(), ports.ProcedureCall{Procedure: "OTHER", Frame: frame}); err != nil {
		t.Errorf("fallback call error = %v", err)
	}
	if h.Calls() != 3 {
		t.Errorf("Calls() = %d, want 3", h.Calls())
	}
}

func TestSession_DisconnectAllServices(t *testing.T) {
	h := New()
	s := dial(t, h)
	if s.Disconnected() {
		t.Fatal("new session reports disconnected")
	}
	s.DisconnectAllServices()
	if !s.Disconnected() || h.Disconnects() != 1 {
		t.Errorf("Disconnected() = %v, Disconnects() = %d", s.Disconnected(), h.Disconnects())
	}
}
