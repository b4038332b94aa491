// Package logx wraps zerolog for hiprelay.
//
// Components take a logx.Logger value (the zero value is usable via Nop) and
// attach fields with the typed helpers. A Service owns the process sinks:
// a short console format for terminals, JSON lines for files, and level or
// sink changes applied on config reload without rebuilding loggers.
package logx
