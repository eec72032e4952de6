package domain

import "strings"

// EnvironmentSpec is the ordered, deduplicated list of libraries that must
// be visible to a session before it is used. It is immutable.
type EnvironmentSpec struct {
	libraries []string
}

// NewEnvironmentSpec normalizes libraries to upper case, drops blanks and
// keeps the first occurrence of duplicates.
func NewEnvironmentSpec(libraries ...string) EnvironmentSpec {
	seen := make(map[string]struct{}, len(libraries))
	out := make([]string, 0, len(libraries))
	for _, lib := range libraries {
		lib = strings.ToUpper(strings.TrimSpace(lib))
		if lib == "" {
			continue
		}
		if _, dup := seen[lib]; dup {
			continue
		}
		seen[lib] = struct{}{}
		out = append(out, lib)
	}
	return EnvironmentSpec{libraries: out}
}

// ParseLibraryList parses a blank separated list such as "QGPL QTEMP".
func ParseLibraryList(s string) EnvironmentSpec {
	return NewEnvironmentSpec(strings.Fields(s)...)
}

// Libraries returns a copy of the library list.
func (e EnvironmentSpec) Libraries() []string {
	return append([]string(nil), e.libraries...)
}

// Empty reports whether there is nothing to apply.
func (e EnvironmentSpec) Empty() bool { return len(e.libraries) == 0 }

// Command renders the host command that replaces the library list.
func (e EnvironmentSpec) Command() string {
	return "CHGLIBL LIBL(" + strings.Join(e.libraries, " ") + ")"
}
