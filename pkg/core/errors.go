package core

import "errors"

var (
	// ErrInvalidArgument is returned for missing or malformed inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned by a Fetcher when the provider has no node with
	// the requested id. The Enricher absorbs it.
	ErrNotFound = errors.New("node not found")

	// ErrMalformedLocation is returned when a tagged node lacks the location
	// data needed to derive its organization.
	ErrMalformedLocation = errors.New("malformed node location")
)
