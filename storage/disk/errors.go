package disk

import "errors"

var (
	// ErrRecordNotFound is returned by Lookup when no root id is registered
	// under the given index name.
	ErrRecordNotFound = errors.New("disk: index record not found")
	// ErrRecordExists is returned by InsertRecord when the name is already
	// registered; callers that want to change it must use UpdateRecord.
	ErrRecordExists = errors.New("disk: index record already exists")
	// ErrHeaderFull is returned when the header page's fixed-size directory
	// cannot hold another record.
	ErrHeaderFull = errors.New("disk: header directory is full")
	// ErrInvalidPageID is returned for operations against page.InvalidID or
	// any id the manager never allocated.
	ErrInvalidPageID = errors.New("disk: invalid page id")
	// ErrBufferSize is returned when a caller's buffer isn't exactly
	// page.Size bytes.
	ErrBufferSize = errors.New("disk: buffer must be exactly page.Size bytes")
	// ErrClosed is returned by any operation on a Manager after Close.
	ErrClosed = errors.New("disk: manager is closed")
)
