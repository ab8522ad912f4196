package sipsa

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectivity matches failures to reach the service at all.
	ErrConnectivity = errors.New("sipsa service unreachable")

	// ErrOperationNotFound is returned when the WSDL does not declare the
	// requested operation or anything resembling it.
	ErrOperationNotFound = errors.New("operation not found in WSDL")
)

// ConnectivityError wraps the transport failure that exhausted retries.
type ConnectivityError struct {
	URL string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// FaultError is a SOAP Fault returned by the service.
type FaultError struct {
	Code   string
	String string
	Detail string
}

func (e *FaultError) Error() string {
	msg := "soap fault"
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.String != "" {
		msg += ": " + e.String
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// StatusError is a non-2xx HTTP response that carried no SOAP Fault.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func newStatusError(code int, body []byte) *StatusError {
	s := string(body)
	if len(s) > 512 {
		s = s[:512]
	}
	return &StatusError{StatusCode: code, Body: s}
}
