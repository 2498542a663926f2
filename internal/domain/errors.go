package domain

import "errors"

var (
	// ErrNotAuthenticated is returned by writes attempted without a signed-in identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNotFound means the owning repository answered and the record is not there.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable means the record could not be checked: the PDS could not be
	// resolved or reached, or it answered with something unusable.
	ErrUnavailable = errors.New("unavailable")

	// ErrRejected marks an XRPC error response from a repository, as opposed to a
	// transport failure.
	ErrRejected = errors.New("rejected by repository")

	// ErrInvalidBlobRef is returned when an upload response carries no content address.
	ErrInvalidBlobRef = errors.New("invalid blob reference")

	// ErrUnsupportedMedia is returned when image content is not an image.
	ErrUnsupportedMedia = errors.New("unsupported media type")
)
