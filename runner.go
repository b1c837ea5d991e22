package statebag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/statebag/statebag/store"
)

// Runner executes batches of items against a shared state store.
// It can be composed into other structures and supports middleware for
// adding cross-cutting concerns to item execution.
type Runner struct {
	// store is the state store shared by every batch this runner executes
	store *store.KVStore
	// middleware chain to apply around each item
	middleware []Middleware
	// defaultLogger used when no logger is provided
	defaultLogger Logger
}

// RunnerOption is a function that configures a Runner
type RunnerOption func(*Runner)

// WithStore sets the state store the runner executes against. Multiple
// runners may share one store.
func WithStore(st *store.KVStore) RunnerOption {
	return func(r *Runner) {
		r.store = st
	}
}

// WithMiddleware adds middleware to the runner
func WithMiddleware(middleware ...Middleware) RunnerOption {
	return func(r *Runner) {
		r.middleware = append(r.middleware, middleware...)
	}
}

// WithLogger sets the default logger for the runner
func WithLogger(logger Logger) RunnerOption {
	return func(r *Runner) {
		r.defaultLogger = logger
	}
}

// NewRunner creates a new batch runner with the given options. If no store
// is supplied, the runner creates its own.
func NewRunner(opts ...RunnerOption) *Runner {
	runner := &Runner{
		middleware:    []Middleware{},
		defaultLogger: NewDefaultLogger(),
	}

	for _, opt := range opts {
		opt(runner)
	}

	if runner.store == nil {
		runner.store = store.NewKVStore()
	}

	return runner
}

// Store returns the state store this runner executes against.
func (r *Runner) Store() *store.KVStore {
	return r.store
}

// Use adds middleware to the runner's middleware chain
func (r *Runner) Use(middleware ...Middleware) {
	r.middleware = append(r.middleware, middleware...)
}

// Execute runs a batch of items in order with the configured middleware
// chain. It stops at the first failing item; the returned records are those
// produced before the failure, and the error is an *ItemError identifying
// the item that failed. Completed writes are not rolled back.
func (r *Runner) Execute(ctx context.Context, items []Item, logger Logger) ([]Record, error) {
	if logger == nil {
		logger = r.defaultLogger
	}

	if ctx == nil {
		ctx = context.Background()
	}

	// Build the middleware chain, applied in reverse order
	var handler HandlerFunc = handleItem
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	var records []Record
	for i, item := range items {
		logger.Debug("Executing item %d/%d: %s", i+1, len(items), item.Action)

		itemCtx := &ItemContext{
			GoContext: ctx,
			Store:     r.store,
			Logger:    logger,
			Item:      item,
			Index:     i,
		}

		out, err := handler(itemCtx)
		if err != nil {
			var itemErr *ItemError
			if !errors.As(err, &itemErr) {
				err = &ItemError{
					Index:  i,
					Action: item.Action,
					Key:    strings.TrimSpace(item.Key),
					Err:    err,
				}
			}
			logger.Error("Item %d failed: %v", i, err)
			return records, err
		}
		records = append(records, out...)
	}

	return records, nil
}

// RunOptions contains options for batch execution
type RunOptions struct {
	// Logger to use for the batch execution
	Logger Logger

	// Context to use for the batch execution
	Context context.Context

	// InitialState contains key-value pairs seeded into the store before
	// the batch runs, overwriting existing keys. Values are subject to the
	// same object-shape validation as set.
	InitialState map[string]any
}

// DefaultRunOptions returns the default options for running a batch
func DefaultRunOptions() RunOptions {
	return RunOptions{
		Logger:  NewDefaultLogger(),
		Context: context.Background(),
	}
}

// ExecuteWithOptions runs a batch with the given options and returns a
// RunResult describing the outcome, including a consistent snapshot of the
// store's final state.
func (r *Runner) ExecuteWithOptions(items []Item, options RunOptions) RunResult {
	startTime := time.Now()
	batchID := uuid.NewString()

	logger := options.Logger
	if logger == nil {
		logger = r.defaultLogger
	}

	ctx := options.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("Starting batch %s with %d items", batchID, len(items))

	var records []Record
	err := r.seed(options.InitialState)
	if err == nil {
		records, err = r.Execute(ctx, items, logger)
	}

	result := RunResult{
		BatchID:       batchID,
		Success:       err == nil,
		Error:         err,
		ExecutionTime: time.Since(startTime),
		Records:       records,
		FinalState:    r.store.Snapshot(),
	}

	if err != nil {
		logger.Error("Batch %s failed after %v: %v", batchID, result.ExecutionTime.Round(time.Millisecond), err)
	} else {
		logger.Info("Batch %s completed in %v", batchID, result.ExecutionTime.Round(time.Millisecond))
	}

	return result
}

func (r *Runner) seed(initial map[string]any) error {
	if len(initial) == 0 {
		return nil
	}
	if err := r.store.Seed(initial); err != nil {
		return fmt.Errorf("seeding initial state: %w", err)
	}
	return nil
}

// handleItem is the core item execution logic: it validates the item's
// parameters and dispatches to the store.
func handleItem(ctx *ItemContext) ([]Record, error) {
	item := ctx.Item

	switch item.Action {
	case ActionSet:
		key, err := requireKey(item.Key)
		if err != nil {
			return nil, err
		}
		value, err := decodeValue(item.Value, "value")
		if err != nil {
			return nil, err
		}
		if err := ctx.Store.Put(key, value); err != nil {
			return nil, err
		}
		stored, _ := ctx.Store.Get(key)
		return []Record{{ItemIndex: ctx.Index, Key: key, Value: stored}}, nil

	case ActionGet:
		key, err := requireKey(item.Key)
		if err != nil {
			return nil, err
		}
		value, _ := ctx.Store.Get(key)
		return []Record{{ItemIndex: ctx.Index, Key: key, Value: value}}, nil

	case ActionGetWithDefault:
		key, err := requireKey(item.Key)
		if err != nil {
			return nil, err
		}
		def, err := decodeValue(item.DefaultValue, "defaultValue")
		if err != nil {
			return nil, err
		}
		// Read and write are two separate lock acquisitions: two concurrent
		// callers on the same absent key can both store their default, with
		// the last writer winning. Store.GetOrPut is the atomic variant.
		if value, ok := ctx.Store.Get(key); ok {
			return []Record{{ItemIndex: ctx.Index, Key: key, Value: value}}, nil
		}
		if err := ctx.Store.Put(key, def); err != nil {
			return nil, err
		}
		value, _ := ctx.Store.Get(key)
		return []Record{{ItemIndex: ctx.Index, Key: key, Value: value}}, nil

	case ActionDelete:
		key, err := requireKey(item.Key)
		if err != nil {
			return nil, err
		}
		ctx.Store.Delete(key)
		return []Record{{ItemIndex: ctx.Index, Key: key, Success: true}}, nil

	case ActionKeys:
		matched := ctx.Store.Keys(item.FilterPattern)
		records := make([]Record, 0, len(matched))
		for _, k := range matched {
			rec := Record{ItemIndex: ctx.Index, Key: k}
			if item.GetValues {
				// Each value is read separately; a concurrent delete can
				// surface as a nil value for an enumerated key.
				if value, ok := ctx.Store.Get(k); ok {
					rec.Value = value
				}
			}
			records = append(records, rec)
		}
		return records, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, item.Action)
	}
}

// requireKey trims the raw key and enforces the adapter-level precondition
// that keys are non-empty after trimming.
func requireKey(raw string) (string, error) {
	key := strings.TrimSpace(raw)
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}

// decodeValue returns the structured form of a value parameter, parsing
// JSON text when the raw value arrives as a string or bytes.
func decodeValue(raw any, param string) (any, error) {
	var text []byte
	switch v := raw.(type) {
	case string:
		text = []byte(v)
	case []byte:
		text = v
	case json.RawMessage:
		text = v
	default:
		return raw, nil
	}

	var out any
	if err := json.Unmarshal(text, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON in %s: %w", param, err)
	}
	return out, nil
}
