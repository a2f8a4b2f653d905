package domain

import "errors"

var (
	// ErrProductNotFound is returned when a barcode or id has no product,
	// locally or at an external source. Distinct from ErrSourceUnavailable
	// so callers can tell "no such barcode" apart from "source unreachable".
	ErrProductNotFound = errors.New("product not found")

	// ErrSourceUnavailable is returned when an external source cannot be
	// reached or answers with a malformed response. Never retried here;
	// retry policy belongs to the caller.
	ErrSourceUnavailable = errors.New("external source unavailable")

	// ErrMalformedRecord is returned when an external record is missing its
	// required name field and cannot be scored.
	ErrMalformedRecord = errors.New("malformed external record")

	// ErrInvalidRequest is returned when request parameters are invalid.
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrBarcodeConflict is returned by product registration when the
	// barcode is already held by another canonical product.
	ErrBarcodeConflict = errors.New("barcode already registered")

	// ErrCacheMiss is returned when data is not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)
