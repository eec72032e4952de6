// Package app wires the hostcall components from configuration: the
// metrics collector, the host dialer, the session pool, the template
// store and its watcher, and the marshaller used by invokers.
package app
