package model

import "errors"

var (
	// ErrNotFound is returned when a project or digest does not exist for the caller.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned by inserts that violate a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate key")

	// ErrInvalidKey reports a malformed subject key.
	ErrInvalidKey = errors.New("invalid subject key")

	// ErrInvalidRequest reports a refresh request that cannot be served as asked.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmptyInput means no record carried renderable content for the generator.
	ErrEmptyInput = errors.New("digest input is empty after normalization")

	// ErrEmptyOutput means the generator answered with blank text.
	ErrEmptyOutput = errors.New("digest output is empty")

	// ErrDraftNotFound is returned for a draft that does not exist for the caller.
	ErrDraftNotFound = errors.New("draft not found")

	// ErrDraftExpired is returned when committing a draft past its TTL.
	ErrDraftExpired = errors.New("draft expired")

	// ErrInvariant marks a persistence state that should be impossible.
	ErrInvariant = errors.New("invariant violated")
)
