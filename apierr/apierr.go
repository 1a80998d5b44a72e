// Copyright 2024 The corenet Authors
// This file is part of the corenet library.
//
// The corenet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The corenet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the corenet library. If not, see <http://www.gnu.org/licenses/>.

// Package apierr is the fatal-to-the-current-operation error taxonomy
// surfaced to API callers (spec §7), as opposed to netresult's non-fatal
// transport outcomes. Every Error implements Unwrap so errors.Is/As work
// against wrapped causes.
package apierr

import "fmt"

// Kind discriminates the category of an Error.
type Kind uint8

const (
	KindNotInitialized Kind = iota
	KindInvalidArgument
	KindInvalidTarget
	KindKeyNotFound
	KindNoConnection
	KindTryAgain
	KindTimeout
	KindGeneric
	KindInternal
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindNotInitialized:
		return "not_initialized"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidTarget:
		return "invalid_target"
	case KindKeyNotFound:
		return "key_not_found"
	case KindNoConnection:
		return "no_connection"
	case KindTryAgain:
		return "try_again"
	case KindTimeout:
		return "timeout"
	case KindGeneric:
		return "generic"
	case KindInternal:
		return "internal"
	case KindParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Error is the concrete type every API boundary returns. Op/Arg/Value are
// only meaningful for KindInvalidArgument; Key only for KindKeyNotFound;
// Context only for KindParseError.
type Error struct {
	Kind    Kind
	Message string
	Op      string
	Arg     string
	Value   string
	Key     string
	Context string
	Cause   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidArgument:
		return fmt.Sprintf("invalid argument: %s(%s=%s)", e.Op, e.Arg, e.Value)
	case KindKeyNotFound:
		return fmt.Sprintf("key not found: %s", e.Key)
	case KindParseError:
		if e.Cause != nil {
			return fmt.Sprintf("parse error in %s: %v", e.Context, e.Cause)
		}
		return fmt.Sprintf("parse error in %s", e.Context)
	default:
		if e.Message != "" {
			return fmt.Sprintf("%s: %s", e.Kind, e.Message)
		}
		return e.Kind.String()
	}
}

// Unwrap exposes Cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

func NotInitialized() *Error { return &Error{Kind: KindNotInitialized} }

func InvalidArgument(op, arg, value string) *Error {
	return &Error{Kind: KindInvalidArgument, Op: op, Arg: arg, Value: value}
}

func InvalidTarget(message string) *Error {
	return &Error{Kind: KindInvalidTarget, Message: message}
}

func KeyNotFound(key string) *Error { return &Error{Kind: KindKeyNotFound, Key: key} }

func NoConnection(reason string) *Error {
	return &Error{Kind: KindNoConnection, Message: reason}
}

func TryAgain() *Error { return &Error{Kind: KindTryAgain} }

func Timeout() *Error { return &Error{Kind: KindTimeout} }

func Generic(message string) *Error { return &Error{Kind: KindGeneric, Message: message} }

func Internal(message string) *Error { return &Error{Kind: KindInternal, Message: message} }

func ParseError(context string, cause error) *Error {
	return &Error{Kind: KindParseError, Context: context, Cause: cause}
}
