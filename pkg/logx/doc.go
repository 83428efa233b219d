// Package logx is fanoutd's structured logging: a value-type Logger over
// zerolog whose sinks (console, JSON console, file) are owned by a Service
// and can be swapped on config reload without rebuilding derived loggers.
package logx
