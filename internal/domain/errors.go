package domain

import "errors"

var (
	// ErrNotFound is returned when a referenced file, directory or owner does
	// not exist in the catalog or on disk.
	ErrNotFound = errors.New("not found")

	// ErrAccessDenied is returned when the acting identity may not touch the
	// resource owner's tree.
	ErrAccessDenied = errors.New("access denied")

	// ErrAlreadyExists is returned when a directory with the same owner and
	// path already exists in the catalog or on disk.
	ErrAlreadyExists = errors.New("already exists")

	// ErrTargetExists is returned when the destination of a move or copy is
	// already occupied.
	ErrTargetExists = errors.New("target already exists")

	// ErrNotEmpty is returned when a directory still has descendant files or
	// directories.
	ErrNotEmpty = errors.New("directory is not empty")

	// ErrInvalidInput is returned for missing or malformed request fields.
	// Never retried.
	ErrInvalidInput = errors.New("invalid input")

	// ErrClientDisconnected is returned when the caller went away mid-upload.
	// It is a distinct termination path, not a storage failure.
	ErrClientDisconnected = errors.New("client disconnected")

	// ErrStorage is returned when a storage or catalog operation still fails
	// after its retry budget is exhausted.
	ErrStorage = errors.New("storage failure")

	// ErrFileTooLarge is returned when an upload exceeds the configured size
	// limit.
	ErrFileTooLarge = errors.New("file size exceeds maximum allowed size")
)
