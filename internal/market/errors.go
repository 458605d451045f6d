package market

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrorKind classifies vendor failures. Callers branch on the kind, never
// on vendor message text.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindTimeout     ErrorKind = "timeout"
	KindNetwork     ErrorKind = "network"
	KindMalformed   ErrorKind = "malformed_response"
	KindOther       ErrorKind = "other"
)

// Error is a classified vendor failure.
type Error struct {
	Kind   ErrorKind
	Symbol string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("market %s for %s: %v", e.Kind, e.Symbol, e.Err)
	}
	return fmt.Sprintf("market %s for %s", e.Kind, e.Symbol)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, symbol string, err error) *Error {
	return &Error{Kind: kind, Symbol: symbol, Err: err}
}

// KindOf extracts the classification from an error chain, defaulting to
// KindOther for unclassified errors.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return KindOther
}

// classify maps a transport-level error to the taxonomy.
func classify(symbol string, err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, symbol, err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindOther, symbol, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return newError(KindTimeout, symbol, err)
		}
		return newError(KindNetwork, symbol, err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return newError(KindTimeout, symbol, err)
	case strings.Contains(msg, "connection"), strings.Contains(msg, "no such host"):
		return newError(KindNetwork, symbol, err)
	}
	return newError(KindOther, symbol, err)
}
