// Package extract enumerates the primitive fields of an arbitrary struct as
// name/value pairs ready to be bound into a call document.
//
// Two strategies are provided. Structural reads field values through
// reflection and is the default. Textual locates each field in the
// object's rendered form ("Obj[name=A, count=3]") and takes the text up to
// the next top-level separator; it exists for objects whose rendering is
// the contract, and it inherits the hazards of substring matching: field
// names must not collide as substrings of each other or of values.
//
// Only fields whose kind is string, integer or floating point are
// declared. Every other field is skipped silently. A field's name is its
// `pcml` tag when present, otherwise the Go field name; `pcml:"-"` skips
// the field.
package extract
