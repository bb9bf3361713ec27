// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Sentinel errors shared across the sync pipeline. Wrap these with
// fmt.Errorf("...: %w", ...) and test with errors.Is so callers can
// classify failures without string matching.
var (
	// ErrAuthConfig means the FAR credentials are absent or incomplete.
	ErrAuthConfig = errors.New("auth configuration incomplete")

	// ErrAuthRejected means the FAR API refused the signed request.
	ErrAuthRejected = errors.New("auth rejected by remote")

	// ErrFetch means a page could not be retrieved after retries.
	ErrFetch = errors.New("fetch failed")

	// ErrMalformedRecord means a fetched record could not be normalized.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrMissingOwner means a publication or grant references a user
	// that is not present in the store.
	ErrMissingOwner = errors.New("owning user not found")

	// ErrPersistence means a write was rejected by the store.
	ErrPersistence = errors.New("persistence failed")

	// ErrStoreUnavailable means the store cannot be reached at all.
	ErrStoreUnavailable = errors.New("store unavailable")
)
