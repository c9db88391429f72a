// Package common defines shared sentinel errors used across the storage and
// backup layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// ErrStorageUnavailable means the primary database (or its file area)
	// could not be reached or ran out of quota. Write paths propagate it so
	// the scheduler can skip a backup cycle instead of recording a success.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrMalformedSnapshot means an imported document failed structural
	// validation. It is raised before any collection is touched.
	ErrMalformedSnapshot = errors.New("malformed snapshot")

	// ErrPermissionRevoked means the user-file tier lost write access to its
	// external file. The tier self-deactivates when it sees this.
	ErrPermissionRevoked = errors.New("permission revoked")

	// ErrCapabilityUnavailable means a backup tier is not supported in the
	// current environment. Treated as a disabled feature, never retried.
	ErrCapabilityUnavailable = errors.New("capability unavailable")

	// ErrNotFound is the generic repository-level miss.
	ErrNotFound = errors.New("not found")
)
