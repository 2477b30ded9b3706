// Package factory turns discriminated configuration entries into live objects.
//
// Every processor, step, policy and client is configured as a JSON blob with a
// type discriminator and an opaque value:
//
//	{ "type": "RequestProcessor", "value": { "latency": 42, "steps": ["A"] } }
//
// A Factory holds an explicit table from discriminator to constructor, so the
// set of supported variants is visible at the registration site. Each variant
// may carry a JSON Schema for its value; schemas express required fields and
// numeric ranges and run before the value is decoded.
//
// Create separates two kinds of bad input. Entries that are not JSON, are
// empty, or have an empty value are skipped with a warning so one sloppy
// entry does not stop a whole load. Entries that are structurally wrong
// (a type without a value, an unknown type, a populated value that fails
// validation) return an error and are expected to abort startup.
package factory
