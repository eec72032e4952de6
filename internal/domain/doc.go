// Package domain contains the value types shared by every hostcall layer.
//
// It has no dependencies on infrastructure concerns (host protocol, file
// system, logging) and contains only pure rules and invariants.
//
//   - [Path]: a dotted parameter path inside a call document
//   - [Slot]: one declared parameter of a call-document template
//   - [Value]: the closed {String, Integer, Decimal} variant held by a slot
//   - [Decimal]: host-native fixed point number
//   - [EnvironmentSpec]: the ordered library list applied to new sessions
//   - [Message]: a diagnostic returned by the host
//
// Errors returned by the public API are defined in errors.go and can be
// checked with errors.Is and errors.As.
package domain
