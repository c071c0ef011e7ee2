// Package logx is forwardbot's structured logging facade over zerolog.
//
// It provides a live-reconfigurable Service (console and JSON file sinks)
// and a small Logger value type whose zero value is a safe no-op.
package logx
