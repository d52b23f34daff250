// Package apperror defines the coded error type shared by every module.
package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"
)

// Kind says who has to act on an error.
type Kind uint8

const (
	KindInternal Kind = iota
	// KindInput means the request itself is wrong and retrying is pointless.
	KindInput
	// KindUpstream means a node, exchange or webhook failed.
	KindUpstream
	// KindPolicy means an operator or config gate refused.
	KindPolicy
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindUpstream:
		return "upstream"
	case KindPolicy:
		return "policy"
	default:
		return "internal"
	}
}

// AppError carries a stable Code plus the detail a log line needs.
type AppError struct {
	Code    Code
	Message string
	Context string
	Kind    Kind
	At      time.Time

	cause error
	pcs   []uintptr
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Context != "" {
		b.WriteString(" (")
		b.WriteString(e.Context)
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error { return e.cause }

// Is matches any *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// LogValue renders the error as a group when passed to slog.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("kind", e.Kind.String()),
		slog.String("message", e.Message),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	if e.Kind == KindInternal && len(e.pcs) > 0 {
		attrs = append(attrs, slog.String("stack", e.Stack()))
	}
	return slog.GroupValue(attrs...)
}

// Stack returns the creation site frames, outside the runtime, one per line.
func (e *AppError) Stack() string {
	var b strings.Builder
	frames := runtime.CallersFrames(e.pcs)
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			fmt.Fprintf(&b, "%s:%d %s\n", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Option customizes an AppError built by New.
type Option func(*AppError)

func WithMessage(msg string) Option { return func(e *AppError) { e.Message = msg } }

func WithContext(ctx string) Option { return func(e *AppError) { e.Context = ctx } }

func WithCause(err error) Option { return func(e *AppError) { e.cause = err } }

func WithKind(k Kind) Option { return func(e *AppError) { e.Kind = k } }

// New builds an error for code. Message defaults to the code's catalog text
// and Kind to what the code implies.
func New(code Code, opts ...Option) *AppError {
	var pcs [24]uintptr
	n := runtime.Callers(2, pcs[:])

	e := &AppError{
		Code:    code,
		Message: messages[code],
		Kind:    kindOf(code),
		At:      time.Now(),
		pcs:     pcs[:n],
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Message == "" {
		e.Message = strings.ToLower(strings.ReplaceAll(string(code), "_", " "))
	}
	return e
}

// Validation reports a malformed or out-of-policy request.
func Validation(code Code, context string) *AppError {
	return New(code, WithContext(context), WithKind(KindInput))
}

// Forbidden reports a gate the operator controls.
func Forbidden(code Code, context string) *AppError {
	return New(code, WithContext(context), WithKind(KindPolicy))
}

// External wraps a failure of a node, exchange or webhook.
func External(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithKind(KindUpstream))
}

// Internal wraps a bug-class failure. Its log value includes the stack.
func Internal(code Code, context string, cause error) *AppError {
	return New(code, WithContext(context), WithCause(cause), WithKind(KindInternal))
}

// GetCode returns the outermost AppError code in err's chain, or
// CodeUnknownError.
func GetCode(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknownError
}

// HasCode reports whether err is an AppError carrying code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// KindOf returns the Kind of err, treating foreign errors as upstream.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUpstream
}

func kindOf(code Code) Kind {
	s := string(code)
	switch {
	case strings.HasPrefix(s, "INVALID"),
		strings.HasPrefix(s, "MISSING"),
		strings.HasPrefix(s, "INSUFFICIENT"),
		code == CodeSameTokenSwap,
		code == CodeZeroOrNegativeAmount,
		code == CodeValueLimitExceeded:
		return KindInput
	case code == CodeEmergencyStop,
		code == CodeRealTradingDisabled,
		code == CodeConfigurationError,
		code == CodeGasPriceTooHigh:
		return KindPolicy
	case strings.HasPrefix(s, "ETHEREUM"),
		strings.HasPrefix(s, "BINANCE"),
		strings.HasPrefix(s, "UNISWAP"),
		strings.HasPrefix(s, "WEBSOCKET"),
		strings.Contains(s, "SERVICE"),
		code == CodeRateLimitExceeded,
		code == CodeCircuitOpen,
		code == CodeNotificationFailed,
		code == CodeQuoteUnavailable,
		code == CodeSimulationFailed,
		code == CodeTransactionReverted,
		code == CodeConfirmationTimeout,
		code == CodeExecutionFailed:
		return KindUpstream
	default:
		return KindInternal
	}
}
