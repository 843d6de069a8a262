package types

import "errors"

// Domain errors for type validation
var (
	ErrMissingChunkID  = errors.New("chunk ID is required")
	ErrMissingFilePath = errors.New("file path is required")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
