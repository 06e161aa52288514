// Package fault holds the error taxonomy shared by the fetch, compute and storage layers.
//
// Errors are single instances so callers can compare them with errors.Is
// no matter how many times they were wrapped on the way up.
package fault

import (
	"errors"
	"fmt"
)

// error classes
type IntegrityError string
type NotFoundError string
type ProcessError string

// common errors - keep in alphabetic order
var (
	ErrAssetNotFound   = IntegrityError("asset not found")
	ErrEmptyPool       = IntegrityError("pool has zero total supply")
	ErrInvalidPayload  = IntegrityError("invalid upstream payload")
	ErrLedgerDecode   = IntegrityError("reward ledger decode failed")
	ErrNotFoundInStore = NotFoundError("entity not found in store")
	ErrPriceNotFound   = NotFoundError("TON price not found")
	ErrRetryExhausted  = ProcessError("retry attempts exhausted")
	ErrSnapshotCorrupt = IntegrityError("snapshot checksum mismatch")
	ErrVaultNotFound   = NotFoundError("vault config not found")
)

func (e IntegrityError) Error() string { return string(e) }
func (e NotFoundError) Error() string  { return string(e) }
func (e ProcessError) Error() string   { return string(e) }

// UpstreamError is a transient failure of a network dependency.
// It is the only error class the retry wrapper is expected to recover from.
type UpstreamError struct {
	Source string
	Err    error
}

// Upstream wraps err as a failure of the named source. A nil err stays nil.
func Upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Source: source, Err: err}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsPermanent reports whether err signals inconsistent upstream data that
// retrying will not fix.
func IsPermanent(err error) bool {
	var integrity IntegrityError
	return errors.As(err, &integrity)
}

// IsUpstream reports whether err carries an UpstreamError.
func IsUpstream(err error) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream)
}
