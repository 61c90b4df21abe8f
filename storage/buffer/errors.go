package buffer

import "errors"

// ErrOutOfMemory is returned by FetchPage/NewPage when the pool has no
// evictable frame left: every frame is pinned. Fatal to the current
// caller's operation, not a retryable condition.
var ErrOutOfMemory = errors.New("buffer: pool exhausted, no evictable frame")

// ErrInvalidPageID is returned when page.InvalidID is passed where a real
// page id is required.
var ErrInvalidPageID = errors.New("buffer: invalid page id")
