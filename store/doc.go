// Package store provides a concurrency-safe in-memory store of JSON objects.
//
// The store maps string keys to JSON-object values and guards all access,
// reads and enumeration included, behind a single lock, so no operation ever
// observes a partially applied mutation. Values are validated at write time:
// only non-null JSON objects are accepted, never arrays or primitives.
//
// Isolation is by copying. Every Put detaches the stored value from the
// caller's references and every Get returns a fresh copy, so mutating a
// value after storing it, or mutating a returned value, never affects the
// store's internal state.
//
// Key enumeration accepts an optional regular-expression filter applied with
// search semantics. A filter that fails to compile is ignored rather than
// surfaced; enumeration never fails. Returned key sequences are sorted, so
// they are stable for a given state of the store.
//
// The store is process-local and ephemeral: there is no persistence, no
// TTL, and no network surface. Clear empties it, typically between
// independent units of work.
package store
