package entity

import "errors"

var (
	// ErrNotFound is returned when a batch, item or stored file does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned for malformed requests
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidProvider is returned for an unknown oracle provider key
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrOracleUnavailable is returned when every oracle attempt failed
	ErrOracleUnavailable = errors.New("extraction oracle unavailable")

	// ErrUnsupportedDocument is returned for file types that cannot be rendered
	ErrUnsupportedDocument = errors.New("unsupported document type")
)
