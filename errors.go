package statebag

import (
	"errors"
	"fmt"
)

// Adapter-level preconditions. Store-shape failures come from the store
// package (store.ErrInvalidValue); these cover the parameters the adapter
// validates itself.
var (
	// ErrEmptyKey is returned when an item's key is empty after trimming
	// surrounding whitespace.
	ErrEmptyKey = errors.New("key must not be empty")

	// ErrUnsupportedAction is returned when an item names an action outside
	// the supported set.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// ItemError reports a failure while processing a single batch item. It
// identifies the offending unit of work by its index in the batch, its
// action, and the key it targeted, and unwraps to the underlying cause.
type ItemError struct {
	// Index is the item's position in the batch.
	Index int
	// Action is the action the item requested.
	Action Action
	// Key is the trimmed key the item targeted, if any.
	Key string
	// Err is the underlying failure.
	Err error
}

func (e *ItemError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("item %d (%s): %v", e.Index, e.Action, e.Err)
	}
	return fmt.Sprintf("item %d (%s %q): %v", e.Index, e.Action, e.Key, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
