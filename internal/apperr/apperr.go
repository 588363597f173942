// Package apperr defines the error kinds returned by the service layer.
// Transport code maps a Kind to a response; services never know about HTTP.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindAccountNotFound
	KindSameAccountTransfer
	KindAccountFrozenOrInactive
	KindInvalidAmount
	KindInsufficientFunds
	KindStorage
	KindInvalidArgument
	KindDuplicateAccountType
	KindInvalidStatusTransition
	KindOwnerNotFound
	KindIdempotencyConflict
)

var kindNames = map[Kind]string{
	KindUnknown:                 "Unknown",
	KindAccountNotFound:         "AccountNotFound",
	KindSameAccountTransfer:     "SameAccountTransfer",
	KindAccountFrozenOrInactive: "AccountFrozenOrInactive",
	KindInvalidAmount:           "InvalidAmount",
	KindInsufficientFunds:       "InsufficientFunds",
	KindStorage:                 "StorageError",
	KindInvalidArgument:         "InvalidArgument",
	KindDuplicateAccountType:    "DuplicateAccountType",
	KindInvalidStatusTransition: "InvalidStatusTransition",
	KindOwnerNotFound:           "OwnerNotFound",
	KindIdempotencyConflict:     "IdempotencyConflict",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Side tells which account of a transfer an error refers to.
type Side string

const (
	SideNone        Side = ""
	SideOrigin      Side = "origin"
	SideDestination Side = "destination"
)

type Error struct {
	Kind    Kind
	Side    Side
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Side != SideNone {
		msg = fmt.Sprintf("%s (%s)", msg, e.Side)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind and side, so errors.Is(err, apperr.InsufficientFunds())
// works in callers and tests.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Side == SideNone || e.Side == t.Side)
}

func New(kind Kind, side Side, message string) *Error {
	return &Error{Kind: kind, Side: side, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind carried by err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func SideOf(err error) Side {
	var e *Error
	if errors.As(err, &e) {
		return e.Side
	}
	return SideNone
}

func AccountNotFound(side Side) *Error {
	return New(KindAccountNotFound, side, "account not found")
}

func SameAccountTransfer() *Error {
	return New(KindSameAccountTransfer, SideNone, "origin and destination are the same account")
}

func AccountFrozenOrInactive(side Side) *Error {
	return New(KindAccountFrozenOrInactive, side, "account is frozen or inactive")
}

func InvalidAmount(message string) *Error {
	return New(KindInvalidAmount, SideNone, message)
}

func InsufficientFunds() *Error {
	return New(KindInsufficientFunds, SideOrigin, "insufficient funds")
}

func Storage(message string, err error) *Error {
	return Wrap(KindStorage, message, err)
}

func InvalidArgument(message string) *Error {
	return New(KindInvalidArgument, SideNone, message)
}
