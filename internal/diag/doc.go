// Package diag defines the diagnostic model shared by the front end, the
// binding emitter and the driver.
//
// # Data model
//
// Diagnostic is an immutable value record:
//
//   - Severity – closed four-level enum (Note, Warning, Error, Fatal).
//   - Origin – which pipeline stage produced it (FrontEnd or Emitter).
//   - Code – compact numeric identifier with a stable string form.
//   - Message – human oriented text, already rendered by the producer.
//   - Location – file/line/column, zero when the producer had none.
//
// Two diagnostics with identical fields are equal under ==. Native front-end
// severities are translated into Severity at the adapter boundary, so nothing
// past internal/frontend depends on a particular compiler's enumeration.
//
// # Ordering
//
// Bag and Aggregator are append-only. Diagnostics are never sorted,
// deduplicated or mutated after they are added: the order in which the front
// end produced them is significant and is what the transcript shows.
//
// # Exit policy
//
// ExitStatus folds the global ordered sequence and the driver's had-skip flag
// into one signed integer: 0 is clean, N > 0 means N emitter warnings, any
// negative value means at least one hard failure. Only emitter-origin
// diagnostics move the status; front-end errors act through the skip flag.
package diag
