// Package log provides the logging abstraction used by hostcall components.
//
// The pool, binder and invoker only depend on the Logger interface defined
// here. A zerolog adapter is provided for applications and a no-op logger
// is used when none is configured.
//
// # Usage
//
//	logger := log.NewZerologAdapterWithLogger(zerolog.New(os.Stderr))
//	p, err := pool.New(dialer, cfg, pool.WithLogger(logger))
//
// Components attach their own context with With:
//
//	sessLog := logger.With(log.String("session", id))
//	sessLog.Warn("library list applied with messages", log.Strings("messages", texts))
//
// # Custom Loggers
//
// Implement the Logger interface to integrate with your existing
// logging infrastructure.
package log
