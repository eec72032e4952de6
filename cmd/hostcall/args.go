package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bft-labs/hostcall/internal/domain"
	"github.com/bft-labs/hostcall/internal/invoker"
)

// assignment is one --set argument: path=value or path[index]=value.
type assignment struct {
	Path  string
	Index int // -1 when not indexed
	Value string
}

// readout is one --get argument: path[index][:kind].
type readout struct {
	Path  string
	Index int
	Kind  domain.Kind
}

// parseTarget parses LIB/SRVPGM.
func parseTarget(s string) (invoker.Target, error) {
	lib, pgm, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || lib == "" || pgm == "" || strings.Contains(pgm, "/") {
		return invoker.Target{}, fmt.Errorf("target %q: want LIBRARY/SERVICEPROGRAM", s)
	}
	return invoker.Target{Library: lib, ServiceProgram: pgm}, nil
}

// parseIndexed splits "name[3]" into "name" and 3, and "name" into
// "name" and -1.
func parseIndexed(s string) (string, int, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		if s == "" {
			return "", 0, fmt.Errorf("empty path")
		}
		return s, -1, nil
	}
	if !strings.HasSuffix(s, "]") || open == 0 {
		return "", 0, fmt.Errorf("path %q: malformed index", s)
	}
	i, err := strconv.Atoi(s[open+1 : len(s)-1])
	if err != nil || i < 0 {
		return "", 0, fmt.Errorf("path %q: index must be a non-negative integer", s)
	}
	return s[:open], i, nil
}

func parseAssignment(s string) (assignment, error) {
	lhs, value, ok := strings.Cut(s, "=")
	if !ok {
		return assignment{}, fmt.Errorf("--set %q: want path=value", s)
	}
	path, index, err := parseIndexed(lhs)
	if err != nil {
		return assignment{}, fmt.Errorf("--set %q: %w", s, err)
	}
	return assignment{Path: path, Index: index, Value: value}, nil
}

func parseReadout(s string) (readout, error) {
	lhs, kindName, hasKind := strings.Cut(s, ":")
	kind := domain.KindString
	if hasKind {
		k, err := domain.ParseKind(strings.ToLower(strings.TrimSpace(kindName)))
		if err != nil {
			return readout{}, fmt.Errorf("--get %q: %w", s, err)
		}
		kind = k
	}
	path, index, err := parseIndexed(lhs)
	if err != nil {
		return readout{}, fmt.Errorf("--get %q: %w", s, err)
	}
	return readout{Path: path, Index: index, Kind: kind}, nil
}

func (a assignment) apply(inv *invoker.Invoker) error {
	if a.Index < 0 {
		return inv.SetValue(a.Path, a.Value)
	}
	return inv.SetValueAt(a.Path, a.Index, a.Value)
}

// render reads r from inv and formats it as "path=value".
func (r readout) render(inv *invoker.Invoker) string {
	name := r.Path
	if r.Index >= 0 {
		name = fmt.Sprintf("%s[%d]", r.Path, r.Index)
	}
	var v string
	switch r.Kind {
	case domain.KindInteger:
		if r.Index >= 0 {
			v = strconv.Itoa(inv.IntAt(r.Path, r.Index))
		} else {
			v = strconv.Itoa(inv.Int(r.Path))
		}
	case domain.KindDecimal:
		var f float64
		if r.Index >= 0 {
			f = inv.DoubleAt(r.Path, r.Index)
		} else {
			f = inv.Double(r.Path)
		}
		v = strconv.FormatFloat(f, 'f', -1, 64)
	default:
		if r.Index >= 0 {
			v = inv.StringAt(r.Path, r.Index)
		} else {
			v = inv.String(r.Path)
		}
	}
	return name + "=" + v
}
