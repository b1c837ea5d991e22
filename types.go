package statebag

import (
	"context"
	"time"

	"github.com/statebag/statebag/store"
)

// Action selects which store operation an Item performs.
type Action string

const (
	// ActionSet stores a value under a key, overwriting any prior value.
	ActionSet Action = "set"
	// ActionGet reads the value for a key; absent keys yield a null value.
	ActionGet Action = "get"
	// ActionGetWithDefault reads the value for a key, storing and returning
	// the supplied default when the key is absent.
	ActionGetWithDefault Action = "getWithDefault"
	// ActionDelete removes the entry for a key; absent keys succeed silently.
	ActionDelete Action = "delete"
	// ActionKeys enumerates keys, optionally filtered by a regular
	// expression and optionally paired with their values.
	ActionKeys Action = "keys"
)

// Item is one unit of work within a batch.
//
// Key is required for every action except keys, and is trimmed of
// surrounding whitespace before use; a key that is empty after trimming
// fails the item. Value and DefaultValue accept either an already-structured
// object or JSON text (string, []byte or json.RawMessage) that is parsed
// before reaching the store.
type Item struct {
	Action Action `json:"action"`
	Key    string `json:"key,omitempty"`
	// Value is the object to store; set only.
	Value any `json:"value,omitempty"`
	// DefaultValue is the object stored and returned when the key is
	// absent; getWithDefault only.
	DefaultValue any `json:"defaultValue,omitempty"`
	// FilterPattern is a regular expression applied to keys with search
	// semantics; keys only. An invalid or empty pattern matches everything.
	FilterPattern string `json:"filterPattern,omitempty"`
	// GetValues pairs each enumerated key with its value; keys only.
	GetValues bool `json:"getValues,omitempty"`
}

// Record is one output row produced for an item. Most actions produce
// exactly one record; keys produces one per matched key.
type Record struct {
	// ItemIndex is the position in the batch of the item that produced
	// this record.
	ItemIndex int `json:"itemIndex"`
	// Key is the key the record concerns.
	Key string `json:"key"`
	// Value holds the object for value-bearing actions; nil when the key
	// was absent.
	Value store.Object `json:"value,omitempty"`
	// Success is set for delete records.
	Success bool `json:"success,omitempty"`
}

// ItemContext carries the execution environment for a single item through
// the middleware chain to the handler.
type ItemContext struct {
	// GoContext is the context the batch was executed with.
	GoContext context.Context
	// Store is the state store the batch runs against.
	Store *store.KVStore
	// Logger for output during item execution.
	Logger Logger
	// Item is the unit of work being executed.
	Item Item
	// Index is the item's position in the batch.
	Index int
}

// HandlerFunc is the core function type for executing a single item.
type HandlerFunc func(ctx *ItemContext) ([]Record, error)

// Middleware wraps item execution. It can perform work before and after an
// item runs, short-circuit it, or replace its records and error.
type Middleware func(next HandlerFunc) HandlerFunc

// RunResult contains the result of executing a batch.
type RunResult struct {
	// BatchID uniquely identifies this execution.
	BatchID string
	// Success reports whether every item completed.
	Success bool
	// Error is the first item failure, if any, as an *ItemError.
	Error error
	// ExecutionTime is the wall-clock duration of the batch.
	ExecutionTime time.Duration
	// Records are the output rows produced before any failure.
	Records []Record
	// FinalState is a consistent deep-copied view of the store after the
	// batch finished.
	FinalState map[string]store.Object
}
