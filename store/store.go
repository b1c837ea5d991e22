package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sasha-s/go-deadlock"
)

// Object is the value type held by the store: a string-keyed JSON object.
// Nested values are the canonical JSON forms (Object, []any, string,
// float64, bool, nil).
type Object = map[string]any

// KVStore is a threadsafe in-memory store of JSON objects.
//
// Every value crossing the store boundary is copied: callers never hold a
// reference that aliases the store's internal state, in either direction.
type KVStore struct {
	mu   deadlock.RWMutex
	data map[string]Object
}

// NewKVStore constructs an empty store.
func NewKVStore() *KVStore {
	return &KVStore{data: make(map[string]Object)}
}

// Put stores value under key, overwriting any prior entry.
//
// The value must be a non-null JSON object: maps with string keys and
// anything that marshals to a JSON object are accepted; nil, arrays and
// primitives fail with ErrInvalidValue and leave the store untouched.
// The key is used verbatim; trimming is the caller's responsibility.
func (s *KVStore) Put(key string, value any) error {
	obj, err := normalize(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = obj
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the value stored under key. The second return
// reports whether an entry exists.
func (s *KVStore) Get(key string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.data[key]
	if !ok {
		return nil, false
	}
	return copyObject(obj), true
}

// GetOrPut returns the value stored under key. If the key is absent, def is
// validated, stored, and a copy of it returned. The boolean reports whether
// the value was already present.
//
// Unlike a Get followed by a Put, this holds the lock across the whole
// check-and-store, so two concurrent callers on the same absent key observe
// exactly one stored default.
func (s *KVStore) GetOrPut(key string, def any) (Object, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[key]; ok {
		return copyObject(existing), true, nil
	}

	obj, err := normalize(def)
	if err != nil {
		return nil, false, err
	}
	s.data[key] = obj
	return copyObject(obj), false, nil
}

// Delete removes the entry for key if present. It reports whether an entry
// was removed; deleting an absent key is a no-op.
func (s *KVStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.data[key]
	if exists {
		delete(s.data, key)
	}
	return exists
}

// Clear removes all entries.
func (s *KVStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]Object)
}

// Count returns the number of entries in the store.
func (s *KVStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Keys returns the stored keys, sorted lexicographically so that repeated
// calls against an unchanged store yield the same sequence.
//
// A filterPattern that is empty after trimming returns all keys. Otherwise
// the pattern is compiled as a regular expression and applied with search
// semantics (a match anywhere in the key). A pattern that fails to compile
// is ignored and all keys are returned; enumeration never fails.
func (s *KVStore) Keys(filterPattern string) []string {
	var re *regexp.Regexp
	if p := strings.TrimSpace(filterPattern); p != "" {
		if compiled, err := regexp.Compile(p); err == nil {
			re = compiled
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.data))
	for k := range s.data {
		if re == nil || re.MatchString(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a deep copy of the entire store contents, taken under a
// single read lock so the view is consistent.
func (s *KVStore) Snapshot() map[string]Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Object, len(s.data))
	for k, obj := range s.data {
		out[k] = copyObject(obj)
	}
	return out
}

// Seed loads the given entries into the store, overwriting existing keys.
// All values are validated before any entry is applied; on error the store
// is unchanged.
func (s *KVStore) Seed(values map[string]any) error {
	normalized := make(map[string]Object, len(values))
	for k, v := range values {
		obj, err := normalize(v)
		if err != nil {
			return fmt.Errorf("seed key %q: %w", k, err)
		}
		normalized[k] = obj
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, obj := range normalized {
		s.data[k] = obj
	}
	return nil
}

// normalize validates that value is a non-null JSON object and returns it as
// a canonical JSON tree detached from the caller's references. The marshal
// and unmarshal round trip does the validation, the canonicalization, and
// the deep copy in one step.
func normalize(value any) (Object, error) {
	if value == nil {
		return nil, ErrInvalidValue
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: value is not JSON-serializable: %v", ErrInvalidValue, err)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, ErrInvalidValue
	}

	var obj Object
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, ErrInvalidValue
	}
	if obj == nil {
		obj = Object{}
	}
	return obj, nil
}

// copyObject returns a deep copy of a canonical JSON object. Entries only
// reach the store through normalize, so the tree holds nothing beyond
// Object, []any and primitive leaves.
func copyObject(obj Object) Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch v := v.(type) {
	case Object:
		return copyObject(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
