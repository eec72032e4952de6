package invoker

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/hostcall/internal/adapters/loopback"
	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/extract"
	"github.com/bft-labs/hostcall/internal/marshal"
	"github.com/bft-labs/hostcall/internal/pcml"
	"github.com/bft-labs/hostcall/internal/pool"
	"github.com/bft-labs/hostcall/internal/ports"
	"github.com/bft-labs/hostcall/pkg/log"
)

const balancePCML = `<pcml version="6.0">
  <struct name="Obj">
    <data name="name" type="char" length="10"/>
    <data name="count" type="int" length="4"/>
  </struct>
  <program name="GETBAL" entrypoint="GET_BALANCE">
    <data name="account" type="char" length="12" usage="input"/>
    <data name="Grp" type="struct" struct="Obj" usage="input"/>
    <data name="items" type="struct" struct="Obj" count="3" usage="inputoutput"/>
    <data name="balance" type="packed" length="11" precision="2" usage="output"/>
    <data name="status" type="int" length="4" usage="output"/>
  </program>
</pcml>`

const programPath = "/QSYS.LIB/APPLIB.LIB/BALSVC.SRVPGM"

// stringLoader serves templates from in-memory PCML sources.
type stringLoader map[string]string

func (l stringLoader) Load(session ports.HostSession, name string) (ports.Document, error) {
	src, ok := l[name]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	t, err := pcml.ParseTemplate(name, strings.NewReader(src))
	if err != nil {
		return nil, err
	}
	return pcml.NewDocument(t, session), nil
}

type obj struct {
	name  string
	count int
}

func (o obj) String() string { return "Obj[name=" + o.name + ", count=" + strconv.Itoa(o.count) + "]" }

type invocationRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *invocationRecorder) InvocationObserved(procedure, result string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, procedure+":"+result)
}

func balanceHandler(ctx context.Context, call ports.ProcedureCall) ([]domain.Message, error) {
	count, err := call.Frame.Value(domain.MustParsePath("Grp.count"), nil)
	if err != nil {
		return nil, err
	}
	if err := call.Frame.SetValue(domain.MustParsePath("balance"), nil,
		domain.DecimalValue(domain.NewDecimal(123456, 2))); err != nil {
		return nil, err
	}
	return nil, call.Frame.SetValue(domain.MustParsePath("status"), nil, count)
}

func newFixture(t *testing.T, opts ...Option) (*loopback.Host, *pool.Pool, *Invoker) {
	t.Helper()
	host := loopback.New()
	host.Handle(programPath, "GET_BALANCE", balanceHandler)
	p, err := pool.New(host, pool.Config{
		Address:     "loopback",
		MaxSessions: 1,
		Environment: domain.NewEnvironmentSpec("APPLIB"),
	})
	if err != nil {
		t.Fatalf("pool.New() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })

	inv, err := New(context.Background(), p, stringLoader{"GETBAL": balancePCML},
		Target{ServiceProgram: "balsvc", Library: "applib"}, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(inv.Disconnect)
	return host, p, inv
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "Disconnected"},
		{StateConnected, "Connected"},
		{StateTemplateBound, "TemplateBound"},
		{StateInvoked, "Invoked"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestTarget_ProgramPath(t *testing.T) {
	got := Target{ServiceProgram: " balsvc", Library: "AppLib "}.ProgramPath()
	if got != programPath {
		t.Errorf("ProgramPath() = %q, want %q", got, programPath)
	}
}

func TestNew_Validation(t *testing.T) {
	p, _ := pool.New(loopback.New(), pool.Config{MaxSessions: 1})
	defer p.Close()

	if _, err := New(context.Background(), p, stringLoader{}, Target{Library: "A"}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("missing program: error = %v", err)
	}
	if _, err := New(context.Background(), nil, stringLoader{}, Target{ServiceProgram: "P", Library: "A"}); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("nil source: error = %v", err)
	}
}

func TestNew_AcquireErrorReturnedAsIs(t *testing.T) {
	host := loopback.New()
	host.FailDial(errors.New("refused"))
	p, _ := pool.New(host, pool.Config{Address: "h", MaxSessions: 1})
	defer p.Close()

	_, err := New(context.Background(), p, stringLoader{}, Target{ServiceProgram: "P", Library: "A"})
	var ce *domain.ConnectionError
	if !errors.As(err, &ce) {
		t.Errorf("New() error = %v, want ConnectionError", err)
	}
}

func TestInvoker_CallSequence(t *testing.T) {
	metrics := &invocationRecorder{}
	_, _, inv := newFixture(t, WithMetrics(metrics))

	if inv.State() != StateConnected {
		t.Fatalf("State() = %v, want Connected", inv.State())
	}
	if libs := inv.Session().Host().(*loopback.Session).LibraryList(); len(libs) != 1 || libs[0] != "APPLIB" {
		t.Errorf("LibraryList() = %v", libs)
	}

	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}
	if inv.State() != StateTemplateBound || inv.Procedure() != "GETBAL" {
		t.Fatalf("State() = %v, Procedure() = %q", inv.State(), inv.Procedure())
	}

	if err := inv.SetValue("account", "ACC-001"); err != nil {
		t.Fatalf("SetValue() error = %v", err)
	}
	if err := inv.MarshalFields(obj{name: "A", count: 3}, "Grp"); err != nil {
		t.Fatalf("MarshalFields() error = %v", err)
	}
	if err := inv.Invoke(context.Background()); err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if inv.State() != StateInvoked {
		t.Errorf("State() = %v, want Invoked", inv.State())
	}

	if got := inv.String("Grp.name"); got != "A" {
		t.Errorf("String(Grp.name) = %q, want A", got)
	}
	if got := inv.Int("status"); got != 3 {
		t.Errorf("Int(status) = %d, want 3", got)
	}
	if got := inv.Double("GETBAL.balance"); got != 1234.56 {
		t.Errorf("Double(balance) = %v, want 1234.56", got)
	}
	if got := inv.String("balance"); got != "1234.56" {
		t.Errorf("String(balance) = %q, want 1234.56", got)
	}
	if len(metrics.results) != 1 || metrics.results[0] != "GETBAL:ok" {
		t.Errorf("metrics = %v", metrics.results)
	}

	// A second invoke from Invoked is allowed.
	if err := inv.Invoke(context.Background()); err != nil {
		t.Errorf("second Invoke() error = %v", err)
	}
}

func TestInvoker_TextualExtraction(t *testing.T) {
	m := marshal.New(extract.Textual{}, nil, nil)
	_, _, inv := newFixture(t, WithMarshaller(m))
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}

	if err := inv.MarshalFields(obj{name: "A", count: 3}, "Grp"); err != nil {
		t.Fatalf("MarshalFields() error = %v", err)
	}
	if got := inv.String("Grp.name"); got != "A" {
		t.Errorf("Grp.name = %q, want A", got)
	}
	if got := inv.Int("Grp.count"); got != 3 {
		t.Errorf("Grp.count = %d, want 3", got)
	}
}

func TestInvoker_RepeatedGroups(t *testing.T) {
	_, _, inv := newFixture(t)
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}

	items := []obj{{name: "X", count: 1}, {name: "Y", count: 2}, {name: "Z", count: 3}}
	for i, it := range items {
		if err := inv.MarshalFieldsAt(it, "items", i); err != nil {
			t.Fatalf("MarshalFieldsAt(%d) error = %v", i, err)
		}
	}
	for i, it := range items {
		if got := inv.StringAt("items.name", i); got != it.name {
			t.Errorf("items.name[%d] = %q, want %q", i, got, it.name)
		}
		if got := inv.IntAt("items.count", i); got != it.count {
			t.Errorf("items.count[%d] = %d, want %d", i, got, it.count)
		}
	}

	var back struct {
		Name  string `pcml:"name"`
		Count int    `pcml:"count"`
	}
	if err := inv.UnmarshalFieldsAt(&back, "items", 1); err != nil {
		t.Fatalf("UnmarshalFieldsAt() error = %v", err)
	}
	if back.Name != "Y" || back.Count != 2 {
		t.Errorf("unmarshalled = %+v", back)
	}

	if err := inv.MarshalFieldsAt(items[0], "items", 3); !errors.Is(err, domain.ErrIndexOutOfRange) {
		t.Errorf("index 3 error = %v, want ErrIndexOutOfRange", err)
	}
}

func TestInvoker_IncompleteInputsBlockInvoke(t *testing.T) {
	host, _, inv := newFixture(t)
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}

	tooLong := obj{name: "ELEVENCHARS", count: 1}
	if err := inv.MarshalFields(tooLong, "Grp"); err == nil {
		t.Fatal("MarshalFields() error = nil, want length failure")
	}
	if err := inv.Invoke(context.Background()); !errors.Is(err, domain.ErrIncompleteInputs) {
		t.Fatalf("Invoke() error = %v, want ErrIncompleteInputs", err)
	}
	if host.Calls() != 0 {
		t.Errorf("Calls() = %d, want 0", host.Calls())
	}

	if err := inv.MarshalFields(obj{name: "OK", count: 1}, "Grp"); err != nil {
		t.Fatalf("MarshalFields() error = %v", err)
	}
	if err := inv.Invoke(context.Background()); err != nil {
		t.Errorf("Invoke() after repair error = %v", err)
	}

	// Rebinding the template also clears a failed pass.
	_ = inv.MarshalFields(tooLong, "Grp")
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}
	if err := inv.Invoke(context.Background()); errors.Is(err, domain.ErrIncompleteInputs) {
		t.Errorf("Invoke() after rebind error = %v", err)
	}
}

func TestInvoker_InvokeFailure(t *testing.T) {
	metrics := &invocationRecorder{}
	logger := log.NewRecorder()
	host, _, inv := newFixture(t, WithMetrics(metrics), WithLogger(logger))
	host.Handle(programPath, "GET_BALANCE", func(ctx context.Context, call ports.ProcedureCall) ([]domain.Message, error) {
		return []domain.Message{{ID: "MCH1211", Text: "Attempt made to divide by zero"}}, errors.New("program ended abnormally")
	})
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}

	err := inv.Invoke(context.Background())
	var ierr *domain.InvocationError
	if !errors.As(err, &ierr) {
		t.Fatalf("Invoke() error = %v, want InvocationError", err)
	}
	if len(ierr.Messages) != 1 || ierr.Messages[0].ID != "MCH1211" {
		t.Errorf("Messages = %v", ierr.Messages)
	}
	if inv.State() != StateTemplateBound {
		t.Errorf("State() = %v, want TemplateBound", inv.State())
	}
	if logger.Count("error") == 0 {
		t.Error("expected the failure to be logged")
	}
	if len(metrics.results) != 1 || metrics.results[0] != "GETBAL:error" {
		t.Errorf("metrics = %v", metrics.results)
	}
}

func TestInvoker_BindTemplateFailureKeepsState(t *testing.T) {
	_, _, inv := newFixture(t)

	err := inv.BindTemplate("MISSING")
	var terr *domain.TemplateError
	if !errors.As(err, &terr) || terr.Name != "MISSING" || !errors.Is(err, domain.ErrTemplateNotFound) {
		t.Fatalf("BindTemplate() error = %v", err)
	}
	if inv.State() != StateConnected {
		t.Errorf("State() = %v, want Connected", inv.State())
	}

	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}
	_ = inv.BindTemplate("MISSING")
	if inv.State() != StateTemplateBound || inv.Document() == nil {
		t.Errorf("failed rebind dropped the bound template")
	}
}

func TestInvoker_OperationsRequireTemplate(t *testing.T) {
	_, _, inv := newFixture(t)

	if err := inv.SetValue("account", "X"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("SetValue() error = %v", err)
	}
	if err := inv.MarshalFields(obj{}, "Grp"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("MarshalFields() error = %v", err)
	}
	if err := inv.Invoke(context.Background()); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("Invoke() error = %v", err)
	}
	if got := inv.String("account"); got != "" {
		t.Errorf("String() = %q, want empty", got)
	}
	if got := inv.Double("balance"); got != 0 {
		t.Errorf("Double() = %v, want 0", got)
	}
}

func TestInvoker_LenientReads(t *testing.T) {
	_, _, inv := newFixture(t)
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}

	if got := inv.String("nope"); got != "" {
		t.Errorf("String(nope) = %q", got)
	}
	if got := inv.Int("account"); got != 0 {
		t.Errorf("Int(account) = %d", got)
	}
	if got := inv.DoubleAt("balance", 2); got != 0 {
		t.Errorf("DoubleAt(balance, 2) = %v", got)
	}
}

func TestInvoker_Disconnect(t *testing.T) {
	host, p, inv := newFixture(t)
	s := inv.Session()
	if err := inv.BindTemplate("GETBAL"); err != nil {
		t.Fatalf("BindTemplate() error = %v", err)
	}

	inv.Disconnect()
	inv.Disconnect()

	if inv.State() != StateDisconnected || inv.Session() != nil {
		t.Errorf("State() = %v, Session() = %v", inv.State(), inv.Session())
	}
	if host.Disconnects() != 1 {
		t.Errorf("Disconnects() = %d, want 1", host.Disconnects())
	}
	if st := p.Stats(); st.Idle != 1 || st.InUse != 0 {
		t.Errorf("pool Stats() = %+v, want session back in idle set", st)
	}
	if err := inv.BindTemplate("GETBAL"); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("BindTemplate() after Disconnect error = %v", err)
	}

	// The pooled session is reused without reapplying the environment.
	inv2, err := New(context.Background(), p, stringLoader{}, Target{ServiceProgram: "BALSVC", Library: "APPLIB"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer inv2.Disconnect()
	if inv2.Session() != s {
		t.Error("expected the released session to be reused")
	}
	if host.Commands() != 1 {
		t.Errorf("Commands() = %d, want 1", host.Commands())
	}
}

func TestInvoker_SetLibraryList(t *testing.T) {
	_, _, inv := newFixture(t)

	if err := inv.SetLibraryList(context.Background(), "mylib", "QGPL"); err != nil {
		t.Fatalf("SetLibraryList() error = %v", err)
	}
	libs := inv.Session().Host().(*loopback.Session).LibraryList()
	if len(libs) != 2 || libs[0] != "MYLIB" || libs[1] != "QGPL" {
		t.Errorf("LibraryList() = %v", libs)
	}

	ok, msgs, err := inv.ExecuteCommand(context.Background(), "DSPJOB")
	if err != nil || ok {
		t.Fatalf("ExecuteCommand() = %v, %v", ok, err)
	}
	if len(msgs) != 1 || msgs[0].ID != "CPD0030" {
		t.Errorf("messages = %v", msgs)
	}

	if err := inv.SetLibraryList(context.Background()); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("empty SetLibraryList() error = %v", err)
	}
}

func TestInvoker_ChangedEnvironmentNotReturnedToPool(t *testing.T) {
	tests := []struct {
		name string
		run  func(inv *Invoker) error
	}{
		{
			name: "library list",
			run: func(inv *Invoker) error {
				return inv.SetLibraryList(context.Background(), "SCRATCH")
			},
		},
		{
			name: "command",
			run: func(inv *Invoker) error {
				_, _, err := inv.ExecuteCommand(context.Background(), "CHGLIBL LIBL(SCRATCH)")
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, p, inv := newFixture(t)
			first := inv.Session()
			if err := tt.run(inv); err != nil {
				t.Fatalf("run error = %v", err)
			}
			inv.Disconnect()

			if st := p.Stats(); st.Open != 0 || st.Idle != 0 {
				t.Errorf("pool Stats() = %+v, want changed session closed", st)
			}

			inv2, err := New(context.Background(), p, stringLoader{}, Target{ServiceProgram: "BALSVC", Library: "APPLIB"})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer inv2.Disconnect()
			if inv2.Session() == first {
				t.Error("session with a changed environment was handed out again")
			}
			libs := inv2.Session().Host().(*loopback.Session).LibraryList()
			if len(libs) != 1 || libs[0] != "APPLIB" {
				t.Errorf("second caller LibraryList() = %v, want [APPLIB]", libs)
			}
			if host.Dials() != 2 {
				t.Errorf("Dials() = %d, want 2", host.Dials())
			}
		})
	}
}
