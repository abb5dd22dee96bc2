package storage

import "errors"

// ErrPersistence wraps a failure from the underlying storage backend (disk,
// database connection, codec). Callers surface it rather than retrying
// silently; a missing record is reported separately via the bool return, not
// this error.
var ErrPersistence = errors.New("persistence error")
