package domain

import "errors"

// Sentinel errors shared across the service.
var (
	// ErrSessionExpired is the unified signal for an unknown, evicted or
	// mid-deletion session. Callers must not be able to tell those cases
	// apart; all of them require a fresh upload.
	ErrSessionExpired = errors.New("session expired")

	// ErrCollectionNotFound is returned by vector store adapters when the
	// target collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists signals a collection naming collision. Given the
	// injective session-to-collection derivation it should never happen.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrInvalidSource is reported when an upload supplies zero or more
	// than one content source.
	ErrInvalidSource = errors.New("exactly one of file, url or text must be provided")

	// ErrUnsupportedContent is reported for documents that cannot be
	// decoded into text. Not retriable.
	ErrUnsupportedContent = errors.New("unsupported or unreadable content")
)
