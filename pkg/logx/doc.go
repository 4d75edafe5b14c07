// Package logx configures idlecraft's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Tick-frequency logs bounded (Sampler, rate limited)
package logx
