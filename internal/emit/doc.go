// Package emit turns cdecl declarations into Go bindings built on purego.
//
// Records, enums and typedefs become Go type declarations; function
// prototypes become fields of one container struct whose Load function
// registers them against a loaded library handle. Unsupported constructs are
// reported as emitter diagnostics and skipped, never aborting generation.
//
// Output is deterministic: the same units under the same configuration
// render byte-identical files, and single-file and multi-file layouts carry
// the same declaration text.
package emit
