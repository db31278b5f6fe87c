package gallery

import "errors"

var (
	ErrNotFound     = errors.New("gallery item not found")
	ErrCorrupt      = errors.New("stored gallery is corrupt")
	ErrDuplicateID  = errors.New("gallery item id already exists")
	ErrInvalidItem  = errors.New("invalid gallery item")
	ErrInvalidQuery = errors.New("invalid gallery query")
)
