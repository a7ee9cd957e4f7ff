// Package trace records what the generator is doing, separately from the
// diagnostics it reports.
//
// Skipped headers, front-end invocations, cache hits and output writes are
// emitted as events so a run that hangs inside the front end, or skips more
// than expected, can be inspected afterwards.
//
// # Usage
//
//	cbind generate --trace=- --trace-level=detail include/openxr/openxr.h
//
// # Tracers
//
//   - Nop: disabled tracing, no cost
//   - StreamTracer: writes each event as it happens (text, NDJSON or Chrome)
//   - RingTracer: keeps the last N events in memory
//   - MultiTracer: fans out to several tracers
//
// # Levels and scopes
//
// LevelPhase shows run and phase boundaries, LevelDetail adds per-file
// events (including every skip), LevelDebug adds per-declaration events.
//
// Tracers travel through the pipeline in a context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeFile, "parse", 0)
//	defer span.End("")
package trace
