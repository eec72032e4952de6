// Package ports defines the interfaces that connect hostcall's core to the
// host-access capability and to call-document templates.
//
// The host protocol itself is out of scope: a Dialer opens sessions, a
// HostSession runs commands and calls procedures, and a TemplateLoader
// turns a template name into a Document bound to a session.
//
//   - [Dialer]: opens a HostSession for an address and credentials
//   - [HostSession]: a live connection to the host
//   - [Document]: a schema-bound call document for one procedure
//   - [CallFrame]: the slot accessors a host implementation sees on invoke
//   - [TemplateLoader]: loads call-document templates by name
//
// Infrastructure adapters (internal/adapters, internal/pcml) implement
// these interfaces; tests use the loopback host.
package ports
