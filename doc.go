// Package statebag exposes a process-local JSON-object state store to
// workflow hosts as a small set of batch-executable operations.
//
// The core lives in the store subpackage: a concurrency-safe key-value
// store holding JSON objects, with copy-on-read/copy-on-write isolation and
// regex-filtered key enumeration. This package is the adapter around it:
// a Runner takes a batch of items, each selecting one of the actions
// set, get, getWithDefault, delete or keys, and produces one or more output
// records per item. Failures carry the index of the offending item; the
// first failure aborts the batch.
//
// Cross-cutting concerns plug in as middleware around item execution:
// logging, OpenTelemetry spans, timing, and Prometheus metrics are provided.
// Hosts that render parameter forms can obtain a JSON schema for each
// action's parameters from ActionSchema.
package statebag
