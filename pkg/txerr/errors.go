// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txerr defines the error kinds shared by the transaction composition,
// multisig and vault packages.
package txerr

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific Error.
const (
	// ErrInsufficientFunds indicates the candidate outputs cannot cover
	// the requested outputs plus fee.
	ErrInsufficientFunds ErrorCode = iota

	// ErrInvalidThreshold indicates a multisig threshold outside of
	// [1, number of keys], or a key set that is too large for a standard
	// multisig script.
	ErrInvalidThreshold

	// ErrNegativeChange indicates the selected inputs do not cover the
	// outputs and fee.
	ErrNegativeChange

	// ErrUnresolvableInput indicates a previous output referenced by a
	// transaction input could not be resolved.
	ErrUnresolvableInput

	// ErrTransactionNotFound indicates a transaction hash is absent from
	// the block it was expected in.
	ErrTransactionNotFound

	// ErrMalformedScript indicates a redeem script or signature script
	// that is missing or cannot be parsed.
	ErrMalformedScript

	// ErrCollaboratorFailure wraps a failure returned by an external
	// collaborator such as a chain backend, key deriver or signer.
	ErrCollaboratorFailure

	// ErrInvalidOutput indicates an output request with a non-positive or
	// out of range value, an undecodable address or a negative fee.
	ErrInvalidOutput

	// ErrDuplicateKey indicates the same public key appears more than once
	// in a multisig key set.
	ErrDuplicateKey
)

// errorCodeStrings is a map of error codes back to their constant names for
// pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrInsufficientFunds:   "ErrInsufficientFunds",
	ErrInvalidThreshold:    "ErrInvalidThreshold",
	ErrNegativeChange:      "ErrNegativeChange",
	ErrUnresolvableInput:   "ErrUnresolvableInput",
	ErrTransactionNotFound: "ErrTransactionNotFound",
	ErrMalformedScript:     "ErrMalformedScript",
	ErrCollaboratorFailure: "ErrCollaboratorFailure",
	ErrInvalidOutput:       "ErrInvalidOutput",
	ErrDuplicateKey:        "ErrDuplicateKey",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}

	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error identifies a composition or signing error. It has an error code, a
// descriptive message and optionally the underlying error.
type Error struct {
	Code ErrorCode
	Desc string
	Err  error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Desc + ": " + e.Err.Error()
	}

	return e.Desc
}

// Unwrap returns the underlying error, if any.
func (e Error) Unwrap() error {
	return e.Err
}

// New creates an Error given a set of arguments.
func New(c ErrorCode, desc string, err error) Error {
	return Error{Code: c, Desc: desc, Err: err}
}

// Newf creates an Error with a formatted description and no underlying
// error.
func Newf(c ErrorCode, format string, args ...any) Error {
	return Error{Code: c, Desc: fmt.Sprintf(format, args...)}
}

// Collaborator tags a failure returned by an external collaborator with the
// operation that triggered it.
func Collaborator(op string, err error) Error {
	return Error{
		Code: ErrCollaboratorFailure,
		Desc: op + " failed",
		Err:  err,
	}
}

// IsError returns whether the error is an Error with a matching error code
// anywhere in its chain.
func IsError(err error, code ErrorCode) bool {
	var e Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}

		if e.Code == code {
			return true
		}

		err = e.Err
	}

	return false
}
