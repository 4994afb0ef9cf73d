package config

import "errors"

// ErrNotFound is returned when a requested resource does not exist in the store.
var ErrNotFound = errors.New("not found")

// ErrUnsupportedDriver is returned when storage.driver names an unknown backend.
var ErrUnsupportedDriver = errors.New("unsupported storage driver")

// ErrUnknownField is returned when a store lookup names a field the kind does not declare.
var ErrUnknownField = errors.New("unknown field")
