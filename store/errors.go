package store

import "errors"

// ErrInvalidValue is returned by Put, GetOrPut and Seed when the candidate
// value is null, an array, or a non-object primitive. Errors carrying extra
// detail wrap it, so errors.Is(err, ErrInvalidValue) always holds.
var ErrInvalidValue = errors.New("value must be a non-null JSON object (not array, not primitive, not null)")
