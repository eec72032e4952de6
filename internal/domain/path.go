package domain

import (
	"errors"
	"strings"
)

var errEmptySegment = errors.New("empty path segment")

// Path is a dot-separated sequence of names addressing a slot within a
// call document, e.g. "Schedule.Disbursement.amount". Segments are never
// empty and carry no surrounding whitespace.
type Path struct {
	segments []string
}

// ParsePath splits s on dots and trims each segment.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return Path{}, &pathError{path: s, err: errEmptySegment}
		}
		parts[i] = p
	}
	return Path{segments: parts}, nil
}

// MustParsePath is ParsePath for constant paths; it panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	return append([]string(nil), p.segments...)
}

// Len returns the number of segments.
func (p Path) Len() int { return len(p.segments) }

// Child returns p extended with name.
func (p Path) Child(name string) Path {
	segs := make([]string, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)
	return Path{segments: append(segs, strings.TrimSpace(name))}
}

// TrimRoot drops the first segment when it equals root.
func (p Path) TrimRoot(root string) Path {
	if len(p.segments) > 1 && p.segments[0] == root {
		return Path{segments: p.segments[1:]}
	}
	return p
}

func (p Path) String() string {
	return strings.Join(p.segments, ".")
}

type pathError struct {
	path string
	err  error
}

func (e *pathError) Error() string { return "invalid path " + `"` + e.path + `": ` + e.err.Error() }
func (e *pathError) Unwrap() error { return e.err }
