package errors

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrEmptyID     = errors.New("empty ID")
	ErrInvalidData = errors.New("invalid data type")
	ErrNoAgents    = errors.New("no active agents registered")
)
