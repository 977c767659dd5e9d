// Package logx is metronome's structured logging.
//
// It is a small wrapper (logx.Logger) on top of zerolog that keeps:
//   - Console output readable (short timestamp + short caller)
//   - Call sites free of zerolog's builder chains (plain Field helpers)
//   - The zero value safe: a zero Logger is a no-op
package logx
