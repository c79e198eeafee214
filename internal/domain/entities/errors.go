package entities

import "errors"

// Error taxonomy. Stores and services return these (optionally wrapped) so
// callers can branch with errors.Is. Messages never carry names.
var (
	// ErrAuthenticationFailure means the passphrase did not decrypt the canary.
	ErrAuthenticationFailure = errors.New("authentication failure: wrong passphrase")
	// ErrCorruptedStore means a required metadata row is missing or unreadable.
	ErrCorruptedStore = errors.New("corrupted store")
	// ErrPoolExhausted means no candidate is left in a pseudonym pool.
	ErrPoolExhausted = errors.New("pseudonym pool exhausted")
	// ErrValidationRejected means a reviewer declined a candidate entity.
	ErrValidationRejected = errors.New("rejected during validation")
	// ErrPersistenceFailure means a write failed and its transaction was rolled back.
	ErrPersistenceFailure = errors.New("persistence failure")
	// ErrNotFound means no entity matched the identifier.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousPrefix means an id prefix matched more than one entity.
	ErrAmbiguousPrefix = errors.New("ambiguous id prefix")
	// ErrStoreExists means initialisation was attempted on an initialised store.
	ErrStoreExists = errors.New("store already initialized")
)
