// Package logger wraps a global zap sugared logger for the bridge.
//
// Every service receives a context and pulls its logger out of it, so a
// component name or request-scoped fields set once with WithName or WithKV
// show up on every line logged further down the call chain.
package logger
