package domain

import "errors"

var (
	ErrNotFound      = errors.New("no such file or directory")
	ErrNotDirectory  = errors.New("not a directory")
	ErrIsDirectory   = errors.New("is a directory")
	ErrNameTooLong   = errors.New("name too long")
	ErrExists        = errors.New("file exists")
	ErrNotEmpty      = errors.New("directory not empty")
	ErrNoSpace       = errors.New("no space left on device")
	ErrTooLarge      = errors.New("file too large")
	ErrInvalidOffset = errors.New("invalid offset")
	ErrCorrupted     = errors.New("storage corrupted")
	ErrUnsupported   = errors.New("operation not supported")
	ErrIO            = errors.New("input/output error")
)
