package statebag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statebag/statebag/store"
)

func TestRunnerSetAndGet(t *testing.T) {
	r := NewRunner()

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "job", Value: map[string]any{"state": "running"}},
		{Action: ActionGet, Key: "job"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Set echoes the stored value back.
	assert.Equal(t, 0, records[0].ItemIndex)
	assert.Equal(t, "job", records[0].Key)
	assert.Equal(t, store.Object{"state": "running"}, records[0].Value)

	assert.Equal(t, 1, records[1].ItemIndex)
	assert.Equal(t, store.Object{"state": "running"}, records[1].Value)
}

func TestRunnerParsesJSONText(t *testing.T) {
	r := NewRunner()

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "a", Value: `{"n": 1}`},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Object{"n": float64(1)}, records[0].Value)

	// JSON text that parses to a non-object is rejected by the store.
	_, err = r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "b", Value: `[1, 2, 3]`},
	}, nil)
	assert.ErrorIs(t, err, store.ErrInvalidValue)

	// JSON text that does not parse at all fails at the adapter.
	_, err = r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "c", Value: `{"broken`},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON in value")
	_, ok := r.Store().Get("c")
	assert.False(t, ok)
}

func TestRunnerTrimsKeys(t *testing.T) {
	r := NewRunner()

	_, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "  padded  ", Value: map[string]any{"v": 1}},
	}, nil)
	require.NoError(t, err)

	// The store holds the trimmed key, and lookups trim too.
	_, ok := r.Store().Get("padded")
	assert.True(t, ok)
	_, ok = r.Store().Get("  padded  ")
	assert.False(t, ok)

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionGet, Key: " padded "},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "padded", records[0].Key)
	assert.NotNil(t, records[0].Value)
}

func TestRunnerRejectsEmptyKey(t *testing.T) {
	r := NewRunner()

	for _, action := range []Action{ActionSet, ActionGet, ActionGetWithDefault, ActionDelete} {
		_, err := r.Execute(context.Background(), []Item{
			{Action: action, Key: "   ", Value: map[string]any{}, DefaultValue: map[string]any{}},
		}, nil)
		require.Error(t, err, "action %s must reject a whitespace-only key", action)
		assert.ErrorIs(t, err, ErrEmptyKey)

		var itemErr *ItemError
		require.ErrorAs(t, err, &itemErr)
		assert.Equal(t, 0, itemErr.Index)
		assert.Equal(t, action, itemErr.Action)
	}

	// keys has no key parameter and is unaffected.
	_, err := r.Execute(context.Background(), []Item{{Action: ActionKeys}}, nil)
	assert.NoError(t, err)
}

func TestRunnerInvalidValueShape(t *testing.T) {
	r := NewRunner()

	_, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "k", Value: 42},
	}, nil)
	assert.ErrorIs(t, err, store.ErrInvalidValue)
	assert.Equal(t, 0, r.Store().Count())
}

func TestRunnerUnsupportedAction(t *testing.T) {
	r := NewRunner()

	_, err := r.Execute(context.Background(), []Item{
		{Action: Action("increment"), Key: "k"},
	}, nil)
	assert.ErrorIs(t, err, ErrUnsupportedAction)
	assert.Contains(t, err.Error(), "increment")
}

func TestRunnerGetAbsent(t *testing.T) {
	r := NewRunner()

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionGet, Key: "missing"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Value)
}

func TestRunnerGetWithDefault(t *testing.T) {
	r := NewRunner()

	// Absent key: the default is persisted and returned.
	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionGetWithDefault, Key: "job", DefaultValue: `{"state": "new"}`},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Object{"state": "new"}, records[0].Value)

	stored, ok := r.Store().Get("job")
	assert.True(t, ok)
	assert.Equal(t, store.Object{"state": "new"}, stored)

	// Present key: the existing value is returned and not overwritten.
	records, err = r.Execute(context.Background(), []Item{
		{Action: ActionGetWithDefault, Key: "job", DefaultValue: map[string]any{"state": "other"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Object{"state": "new"}, records[0].Value)

	stored, _ = r.Store().Get("job")
	assert.Equal(t, store.Object{"state": "new"}, stored)
}

func TestRunnerDelete(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Store().Put("a", store.Object{}))

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionDelete, Key: "a"},
		{Action: ActionDelete, Key: "a"},
		{Action: ActionDelete, Key: "never-set"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, rec := range records {
		assert.True(t, rec.Success)
	}
	assert.Equal(t, 0, r.Store().Count())
}

func TestRunnerKeys(t *testing.T) {
	r := NewRunner()
	require.NoError(t, r.Store().Put("user:1", store.Object{"n": float64(1)}))
	require.NoError(t, r.Store().Put("user:2", store.Object{"n": float64(2)}))
	require.NoError(t, r.Store().Put("session:9", store.Object{"n": float64(9)}))

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionKeys, FilterPattern: "^user:"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "user:1", records[0].Key)
	assert.Equal(t, "user:2", records[1].Key)
	assert.Nil(t, records[0].Value)

	// An invalid pattern degrades to all keys.
	records, err = r.Execute(context.Background(), []Item{
		{Action: ActionKeys, FilterPattern: "[invalid"},
	}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	// getValues pairs each key with its value.
	records, err = r.Execute(context.Background(), []Item{
		{Action: ActionKeys, FilterPattern: "^user:", GetValues: true},
	}, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, store.Object{"n": float64(1)}, records[0].Value)
	assert.Equal(t, store.Object{"n": float64(2)}, records[1].Value)
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	r := NewRunner()

	records, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "a", Value: map[string]any{"n": 1}},
		{Action: ActionSet, Key: "b", Value: "not json"},
		{Action: ActionSet, Key: "c", Value: map[string]any{"n": 3}},
	}, nil)
	require.Error(t, err)

	var itemErr *ItemError
	require.ErrorAs(t, err, &itemErr)
	assert.Equal(t, 1, itemErr.Index)
	assert.Equal(t, ActionSet, itemErr.Action)
	assert.Equal(t, "b", itemErr.Key)

	// Records up to the failure are returned; the write before the failure
	// stands, the item after it never ran.
	require.Len(t, records, 1)
	assert.Equal(t, "a", records[0].Key)
	_, ok := r.Store().Get("a")
	assert.True(t, ok)
	_, ok = r.Store().Get("c")
	assert.False(t, ok)
}

func TestRunnerSharedStore(t *testing.T) {
	shared := store.NewKVStore()
	writer := NewRunner(WithStore(shared))
	reader := NewRunner(WithStore(shared))

	_, err := writer.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "shared", Value: map[string]any{"v": 1}},
	}, nil)
	require.NoError(t, err)

	records, err := reader.Execute(context.Background(), []Item{
		{Action: ActionGet, Key: "shared"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, store.Object{"v": float64(1)}, records[0].Value)
}

func TestExecuteWithOptions(t *testing.T) {
	r := NewRunner()

	result := r.ExecuteWithOptions([]Item{
		{Action: ActionGetWithDefault, Key: "seeded", DefaultValue: map[string]any{"fresh": true}},
		{Action: ActionSet, Key: "added", Value: map[string]any{"n": 1}},
	}, RunOptions{
		InitialState: map[string]any{
			"seeded": map[string]any{"fresh": false},
		},
	})

	assert.True(t, result.Success)
	assert.NoError(t, result.Error)
	assert.NotEmpty(t, result.BatchID)
	require.Len(t, result.Records, 2)

	// The seeded value was present, so the default did not apply.
	assert.Equal(t, store.Object{"fresh": false}, result.Records[0].Value)

	assert.Len(t, result.FinalState, 2)
	assert.Equal(t, store.Object{"n": float64(1)}, result.FinalState["added"])

	// Each execution gets its own batch ID.
	other := r.ExecuteWithOptions(nil, DefaultRunOptions())
	assert.NotEqual(t, result.BatchID, other.BatchID)
}

func TestExecuteWithOptionsBadInitialState(t *testing.T) {
	r := NewRunner()

	result := r.ExecuteWithOptions([]Item{
		{Action: ActionSet, Key: "a", Value: map[string]any{}},
	}, RunOptions{
		InitialState: map[string]any{"bad": []any{1, 2}},
	})

	assert.False(t, result.Success)
	assert.ErrorIs(t, result.Error, store.ErrInvalidValue)
	// The batch never ran.
	assert.Empty(t, result.Records)
	assert.Empty(t, result.FinalState)
}

func TestRunnerMiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx *ItemContext) ([]Record, error) {
				order = append(order, name+":before")
				records, err := next(ctx)
				order = append(order, name+":after")
				return records, err
			}
		}
	}

	r := NewRunner(WithMiddleware(tag("outer")))
	r.Use(tag("inner"))

	_, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "k", Value: map[string]any{}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:before", "inner:before", "inner:after", "outer:after"}, order)
}

func TestRunnerMiddlewareSeesFailure(t *testing.T) {
	var seen error
	capture := func(next HandlerFunc) HandlerFunc {
		return func(ctx *ItemContext) ([]Record, error) {
			records, err := next(ctx)
			seen = err
			return records, err
		}
	}

	r := NewRunner(WithMiddleware(capture))
	_, err := r.Execute(context.Background(), []Item{
		{Action: ActionSet, Key: "k", Value: true},
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(seen, store.ErrInvalidValue))
}
