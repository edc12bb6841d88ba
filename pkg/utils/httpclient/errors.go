package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
)

// ErrorKind classifies outbound transport failures.
type ErrorKind int

const (
	// KindUnknown is any failure that could not be classified.
	KindUnknown ErrorKind = iota
	// KindConnect is a refused or unreachable connection.
	KindConnect
	// KindConnectTimeout is a dial or TLS handshake timeout.
	KindConnectTimeout
	// KindReadTimeout is a timeout while waiting for response bytes.
	KindReadTimeout
	// KindWriteTimeout is a timeout while sending the request.
	KindWriteTimeout
	// KindPoolTimeout is a timeout waiting for a free connection slot.
	KindPoolTimeout
	// KindProtocol is a connection dropped or corrupted mid-exchange.
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnect:
		return "connect error"
	case KindConnectTimeout:
		return "connect timeout"
	case KindReadTimeout:
		return "read timeout"
	case KindWriteTimeout:
		return "write timeout"
	case KindPoolTimeout:
		return "pool timeout"
	case KindProtocol:
		return "remote protocol error"
	default:
		return "transport error"
	}
}

// TransportError is a classified failure of an outbound request.
type TransportError struct {
	Kind ErrorKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError is returned by DoJSON for responses with status >= 400.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// IsTransient reports whether err is a read timeout or a remote protocol error.
// These are the only failures worth replaying against the index service: connect
// failures, write timeouts and pool exhaustion are not retried.
func IsTransient(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	return te.Kind == KindReadTimeout || te.Kind == KindProtocol
}

// KindOf returns the classified kind of err, or KindUnknown.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// Classify wraps an error produced by a plain *http.Client, such as the one
// returned by HTTPClient, into a TransportError.
func Classify(err error) error {
	return classify(nil, err)
}

// classify wraps a raw transport error into a TransportError.
// Cancellation by the caller is returned unchanged.
func classify(req *http.Request, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if req != nil && req.Context().Err() != nil && errors.Is(err, req.Context().Err()) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var opErr *net.OpError
	hasOp := errors.As(err, &opErr)

	if isTimeout(err, opErr) {
		kind := KindReadTimeout
		if hasOp {
			switch opErr.Op {
			case "dial":
				kind = KindConnectTimeout
			case "write":
				kind = KindWriteTimeout
			}
		} else if strings.Contains(err.Error(), "TLS handshake timeout") {
			kind = KindConnectTimeout
		}
		return &TransportError{Kind: kind, Err: err}
	}

	if isProtocolError(err) {
		return &TransportError{Kind: KindProtocol, Err: err}
	}

	if hasOp && opErr.Op == "dial" {
		return &TransportError{Kind: KindConnect, Err: err}
	}

	return &TransportError{Kind: KindUnknown, Err: err}
}

// isTimeout walks past wrappers such as *url.Error whose own Timeout method
// only inspects the directly wrapped error.
func isTimeout(err error, opErr *net.OpError) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if opErr != nil && opErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isProtocolError(err error) bool {
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "server closed idle connection") ||
		strings.Contains(msg, "malformed HTTP") ||
		strings.Contains(msg, "connection reset by peer")
}
