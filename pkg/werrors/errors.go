// Package werrors provides structured error handling for the wallet engine.
// It defines the stable error code vocabulary the engine's callers match on,
// plus helpers for wrapping and annotating errors with context.
package werrors

import (
	"errors"
	"fmt"
	"sort"
)

// WalletError is the structured error type returned across the engine
// boundary. Code is the stable, caller-matchable identifier; Message is
// human-readable; Details carries structured context (e.g. have/need).
type WalletError struct {
	Code    string
	Message string
	Details map[string]string
	Cause   error
}

func (e *WalletError) Error() string {
	msg := e.Message

	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *WalletError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is by comparing codes, so callers can write
// errors.Is(err, werrors.ErrLocked) regardless of Details/Cause.
func (e *WalletError) Is(target error) bool {
	var t *WalletError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Stable error code vocabulary (spec §6/§7).
const (
	CodeLocked                 = "LOCKED"
	CodeNoVault                = "NO_VAULT"
	CodeBadPassword            = "BAD_PASSWORD"
	CodeBadAddress             = "BAD_ADDRESS"
	CodeInvalidMnemonic        = "INVALID_MNEMONIC"
	CodeInvalidAccountIndex    = "INVALID_ACCOUNT_INDEX"
	CodeMethodNotSupported     = "METHOD_NOT_SUPPORTED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidParams          = "INVALID_PARAMS"
	CodeRequestExpired         = "REQUEST_EXPIRED"
	CodeUserRejected           = "USER_REJECTED"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeSpendConditionMismatch = "SPEND_CONDITION_MISMATCH"

	// Engine-internal (§4.4).
	CodeCannotSpend   = "CANNOT_SPEND"
	CodeSigningFailed = "SIGNING_FAILED"
	CodeInvalidFee    = "INVALID_FEE"
	CodeInvalidAmount = "INVALID_AMOUNT"
)

// Sentinel errors, one per stable code. Match with errors.Is.
var (
	ErrLocked = &WalletError{Code: CodeLocked, Message: "vault is locked"}

	ErrNoVault = &WalletError{Code: CodeNoVault, Message: "no vault exists"}

	ErrBadPassword = &WalletError{Code: CodeBadPassword, Message: "incorrect password"}

	ErrBadAddress = &WalletError{Code: CodeBadAddress, Message: "invalid address"}

	ErrInvalidMnemonic = &WalletError{Code: CodeInvalidMnemonic, Message: "invalid mnemonic phrase"}

	ErrInvalidAccountIndex = &WalletError{Code: CodeInvalidAccountIndex, Message: "invalid account index"}

	ErrMethodNotSupported = &WalletError{Code: CodeMethodNotSupported, Message: "method not supported"}

	ErrUnauthorized = &WalletError{Code: CodeUnauthorized, Message: "unauthorized"}

	ErrNotFound = &WalletError{Code: CodeNotFound, Message: "not found"}

	ErrInvalidParams = &WalletError{Code: CodeInvalidParams, Message: "invalid parameters"}

	ErrRequestExpired = &WalletError{Code: CodeRequestExpired, Message: "request expired"}

	ErrUserRejected = &WalletError{Code: CodeUserRejected, Message: "rejected by user"}

	ErrInsufficientFunds = &WalletError{Code: CodeInsufficientFunds, Message: "insufficient funds"}

	ErrSpendConditionMismatch = &WalletError{Code: CodeSpendConditionMismatch, Message: "no spend condition matches note first-name"}

	ErrCannotSpend = &WalletError{Code: CodeCannotSpend, Message: "cannot spend note"}

	ErrSigningFailed = &WalletError{Code: CodeSigningFailed, Message: "signing failed"}

	ErrInvalidFee = &WalletError{Code: CodeInvalidFee, Message: "invalid fee"}

	ErrInvalidAmount = &WalletError{Code: CodeInvalidAmount, Message: "invalid amount"}
)

// New creates a WalletError with the given code and message.
func New(code, message string) *WalletError {
	return &WalletError{Code: code, Message: message}
}

// Wrap annotates err with a formatted message, preserving its code and
// details if err is (or wraps) a *WalletError.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:    we.Code,
			Message: fmt.Sprintf("%s: %s", msg, we.Message),
			Details: we.Details,
			Cause:   err,
		}
	}

	return &WalletError{Code: CodeInvalidParams, Message: msg, Cause: err}
}

// WithDetails returns a copy of err (if a *WalletError) carrying details.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var we *WalletError
	if errors.As(err, &we) {
		return &WalletError{
			Code:    we.Code,
			Message: we.Message,
			Details: details,
			Cause:   we.Cause,
		}
	}

	return &WalletError{Code: CodeInvalidParams, Message: err.Error(), Details: details, Cause: err}
}

// Code returns the stable code for err, or "" if err is not a *WalletError.
func Code(err error) string {
	var we *WalletError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
