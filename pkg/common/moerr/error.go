// Copyright 2021 - 2022 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
)

const (
	// Ok is the code a nil error reports.
	Ok uint16 = 0

	// Group 1: Internal errors
	ErrInternal     uint16 = 20101
	ErrOOM          uint16 = 20103
	ErrNotSupported uint16 = 20105

	// Group 2: numeric and ranges
	ErrOutOfRange     uint16 = 20201
	ErrInvalidArg     uint16 = 20203
	ErrLengthExceeded uint16 = 20210

	// Group 3: invalid input
	ErrBadConfig    uint16 = 20300
	ErrInvalidInput uint16 = 20301

	// Group 4: unexpected state
	ErrInvalidState uint16 = 20400
	ErrEmptyVector  uint16 = 20404

	// Group 7: element lifetime
	// ErrElemConstruct the element constructor, clone or init hook failed
	ErrElemConstruct uint16 = 20700

	// ErrEnd, the max value of MOErrorCode
	ErrEnd uint16 = 65535
)

type moErrorMsgItem struct {
	errorMsgOrFormat string
}

var errorMsgRefer = map[uint16]moErrorMsgItem{
	// Group 1: Internal errors
	ErrInternal:     {"internal error: %s"},
	ErrOOM:          {"error: out of memory"},
	ErrNotSupported: {"not supported: %s"},

	// Group 2: numeric and ranges
	ErrOutOfRange:     {"out of range: %s, %s"},
	ErrInvalidArg:     {"invalid argument %s, bad value %s"},
	ErrLengthExceeded: {"length exceeded: requested %d, max size %d"},

	// Group 3: invalid input
	ErrBadConfig:    {"invalid configuration: %s"},
	ErrInvalidInput: {"invalid input: %s"},

	// Group 4: unexpected state
	ErrInvalidState: {"invalid state %s"},
	ErrEmptyVector:  {"empty vector"},

	// Group 7: element lifetime
	ErrElemConstruct: {"element construction failed: %s"},

	// Group End: max value of MOErrorCode
	ErrEnd: {"internal error: end of errcode code"},
}

func newError(ctx context.Context, code uint16, args ...any) *Error {
	var err *Error
	item, has := errorMsgRefer[code]
	if !has {
		panic(NewInternalError(ctx, "not exist MOErrorCode: %d", code))
	}
	if len(args) == 0 {
		err = &Error{
			code:    code,
			message: item.errorMsgOrFormat,
		}
	} else {
		err = &Error{
			code:    code,
			message: fmt.Sprintf(item.errorMsgOrFormat, args...),
		}
	}
	return err
}

type Error struct {
	code    uint16
	message string
	cause   error
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

// Unwrap returns the error that caused e, if any. Element construction
// failures keep the constructor's own error here.
func (e *Error) Unwrap() error {
	return e.cause
}

func IsMoErrCode(e error, rc uint16) bool {
	if e == nil {
		return rc == Ok
	}

	var me *Error
	if !errors.As(e, &me) {
		// This is not a moerr
		return false
	}
	return me.code == rc
}

// ConvertPanicError converts a runtime panic to internal error.
func ConvertPanicError(ctx context.Context, v interface{}) *Error {
	if e, ok := v.(*Error); ok {
		return e
	}
	return newError(ctx, ErrInternal, fmt.Sprintf("panic %v: %s", v, callers(3)))
}

func callers(skip int) string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&sb, "\n\t%s:%d", frame.File, frame.Line)
		if !more {
			break
		}
	}
	return sb.String()
}

func NewInternalError(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInternal, xmsg)
}

func NewNotSupported(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrNotSupported, xmsg)
}

func NewOOM(ctx context.Context) *Error {
	return newError(ctx, ErrOOM)
}

func NewOutOfRange(ctx context.Context, typ string, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrOutOfRange, typ, xmsg)
}

func NewInvalidArg(ctx context.Context, arg string, val any) *Error {
	return newError(ctx, ErrInvalidArg, arg, fmt.Sprintf("%v", val))
}

func NewLengthExceeded(ctx context.Context, requested, maxSize int) *Error {
	return newError(ctx, ErrLengthExceeded, requested, maxSize)
}

func NewBadConfig(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrBadConfig, xmsg)
}

func NewInvalidInput(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidInput, xmsg)
}

func NewInvalidState(ctx context.Context, msg string, args ...any) *Error {
	xmsg := fmt.Sprintf(msg, args...)
	return newError(ctx, ErrInvalidState, xmsg)
}

func NewEmptyVector(ctx context.Context) *Error {
	return newError(ctx, ErrEmptyVector)
}

// NewElemConstruct wraps the error returned by an element constructor.
func NewElemConstruct(ctx context.Context, cause error) *Error {
	err := newError(ctx, ErrElemConstruct, cause.Error())
	err.cause = cause
	return err
}
