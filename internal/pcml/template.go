package pcml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bft-labs/hostcall/internal/domain"
)

var (
	errNoProgram     = errors.New("no matching <program> element")
	errUnknownType   = errors.New("unsupported data type")
	errUnknownStruct = errors.New("unknown struct")
	errRecursive     = errors.New("recursive struct")
)

// Template is a parsed call-document template for one program.
type Template struct {
	// Name is the name the template was loaded under.
	Name string

	// Program is the name of the <program> element.
	Program string

	// EntryPoint is the exported procedure name, when it differs from
	// Program.
	EntryPoint string

	// Path is the program path declared by the template, if any.
	Path string

	slots []domain.Slot
	index map[string]int
}

// Lookup returns the slot for p. A leading segment equal to the program
// name is accepted.
func (t *Template) Lookup(p domain.Path) (domain.Slot, bool) {
	i, ok := t.index[p.TrimRoot(t.Program).String()]
	if !ok {
		return domain.Slot{}, false
	}
	return t.slots[i], true
}

// Slots returns every primitive slot in document order.
func (t *Template) Slots() []domain.Slot {
	return append([]domain.Slot(nil), t.slots...)
}

// node is a generic element used to keep child order.
type node struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []node     `xml:",any"`
}

func (n node) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

// ParseTemplate parses a PCML document and selects the program called
// name, or the only program when the document declares exactly one.
func ParseTemplate(name string, r io.Reader) (*Template, error) {
	var root node
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, fmt.Errorf("decode pcml: %w", err)
	}
	if root.XMLName.Local != "pcml" {
		return nil, fmt.Errorf("root element is <%s>, want <pcml>", root.XMLName.Local)
	}

	structs := make(map[string]node)
	var programs []node
	for _, c := range root.Children {
		switch c.XMLName.Local {
		case "struct":
			structs[c.attr("name")] = c
		case "program":
			programs = append(programs, c)
		}
	}

	prog, err := selectProgram(name, programs)
	if err != nil {
		return nil, err
	}

	b := &builder{structs: structs, visiting: make(map[string]bool)}
	if err := b.children(prog, nil, nil, domain.UsageInherit); err != nil {
		return nil, fmt.Errorf("program %s: %w", prog.attr("name"), err)
	}

	t := &Template{
		Name:       name,
		Program:    prog.attr("name"),
		EntryPoint: prog.attr("entrypoint"),
		Path:       prog.attr("path"),
		slots:      b.slots,
		index:      make(map[string]int, len(b.slots)),
	}
	for i, s := range b.slots {
		if _, dup := t.index[s.Path]; dup {
			return nil, fmt.Errorf("program %s: duplicate parameter %s", t.Program, s.Path)
		}
		t.index[s.Path] = i
	}
	return t, nil
}

func selectProgram(name string, programs []node) (node, error) {
	for _, p := range programs {
		if p.attr("name") == name {
			return p, nil
		}
	}
	if len(programs) == 1 {
		return programs[0], nil
	}
	return node{}, fmt.Errorf("%w: %s", errNoProgram, name)
}

type builder struct {
	structs  map[string]node
	visiting map[string]bool
	slots    []domain.Slot
}

func (b *builder) children(parent node, prefix []string, counts []int, usage domain.Usage) error {
	for _, c := range parent.Children {
		switch c.XMLName.Local {
		case "data":
			if err := b.data(c, prefix, counts, usage); err != nil {
				return err
			}
		case "struct":
			if err := b.group(c, c, prefix, counts, usage); err != nil {
				return err
			}
		}
	}
	return nil
}

// group descends into a struct, either inline (def == elem) or referenced
// from a data element.
func (b *builder) group(elem, def node, prefix []string, counts []int, usage domain.Usage) error {
	name := elem.attr("name")
	if name == "" {
		return errors.New("struct element without name")
	}
	u, err := parseUsage(elem.attr("usage"), usage)
	if err != nil {
		return err
	}
	counts, err = withCount(elem, counts)
	if err != nil {
		return err
	}
	defName := def.attr("name")
	if b.visiting[defName] {
		return fmt.Errorf("%w: %s", errRecursive, defName)
	}
	b.visiting[defName] = true
	defer delete(b.visiting, defName)
	return b.children(def, appendCopy(prefix, name), counts, u)
}

func (b *builder) data(n node, prefix []string, counts []int, usage domain.Usage) error {
	name := n.attr("name")
	if name == "" {
		return errors.New("data element without name")
	}
	typ := n.attr("type")
	if typ == "struct" {
		def, ok := b.structs[n.attr("struct")]
		if !ok {
			return fmt.Errorf("%w: %q referenced by %s", errUnknownStruct, n.attr("struct"), name)
		}
		return b.group(n, def, prefix, counts, usage)
	}

	u, err := parseUsage(n.attr("usage"), usage)
	if err != nil {
		return err
	}
	counts, err = withCount(n, counts)
	if err != nil {
		return err
	}
	slot := domain.Slot{
		Path:   strings.Join(appendCopy(prefix, name), "."),
		Counts: counts,
		Usage:  u,
	}
	length, err := intAttr(n, "length", 0)
	if err != nil {
		return err
	}
	precision, err := intAttr(n, "precision", -1)
	if err != nil {
		return err
	}

	switch typ {
	case "char":
		if length <= 0 {
			return fmt.Errorf("%s: char needs a positive length", slot.Path)
		}
		slot.Kind, slot.Length = domain.KindString, length
	case "int":
		if length == 0 {
			length = 4
		}
		if length != 2 && length != 4 && length != 8 {
			return fmt.Errorf("%s: int length must be 2, 4 or 8", slot.Path)
		}
		slot.Kind, slot.Length = domain.KindInteger, length
		slot.Unsigned = precision == length*8
	case "packed", "zoned":
		if length <= 0 || length > domain.MaxDigits {
			return fmt.Errorf("%s: %s length must be 1..%d", slot.Path, typ, domain.MaxDigits)
		}
		if precision < 0 {
			precision = 0
		}
		if precision > length {
			return fmt.Errorf("%s: precision %d exceeds length %d", slot.Path, precision, length)
		}
		slot.Kind, slot.Length, slot.Scale = domain.KindDecimal, length, int32(precision)
	case "float":
		if length != 4 && length != 8 {
			return fmt.Errorf("%s: float length must be 4 or 8", slot.Path)
		}
		slot.Kind, slot.Length, slot.Scale = domain.KindDecimal, domain.MaxDigits, floatScale
	default:
		return fmt.Errorf("%w: %s has type %q", errUnknownType, slot.Path, typ)
	}
	b.slots = append(b.slots, slot)
	return nil
}

// floatScale is the number of fractional digits kept for float fields.
const floatScale = 6

func withCount(n node, counts []int) ([]int, error) {
	raw := n.attr("count")
	if raw == "" {
		return counts, nil
	}
	c, err := strconv.Atoi(raw)
	if err != nil || c <= 0 {
		return nil, fmt.Errorf("%s: count %q must be a positive literal", n.attr("name"), raw)
	}
	return append(appendCopyInt(counts), c), nil
}

func intAttr(n node, name string, def int) (int, error) {
	raw := n.attr(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %s %q: %w", n.attr("name"), name, raw, err)
	}
	return v, nil
}

func parseUsage(s string, inherit domain.Usage) (domain.Usage, error) {
	switch s {
	case "", "inherit":
		return inherit, nil
	case "input":
		return domain.UsageInput, nil
	case "output":
		return domain.UsageOutput, nil
	case "inputoutput":
		return domain.UsageInputOutput, nil
	}
	return 0, fmt.Errorf("unknown usage %q", s)
}

func appendCopy(s []string, v string) []string {
	out := make([]string, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func appendCopyInt(s []int) []int {
	out := make([]int, len(s), len(s)+1)
	copy(out, s)
	return out
}
