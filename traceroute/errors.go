// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2025-present Datadog, Inc.

package traceroute

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"

	"github.com/DataDog/datadog-hoptrace/result"
)

// ErrorCode represents a classifiable error code reported by the CLI and the HTTP API.
type ErrorCode string

const (
	// ErrCodeDNS indicates a DNS resolution failure.
	ErrCodeDNS ErrorCode = "DNS"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeConnRefused indicates the target actively refused the connection.
	ErrCodeConnRefused ErrorCode = "CONNREFUSED"
	// ErrCodeHostUnreach indicates the target host is unreachable.
	ErrCodeHostUnreach ErrorCode = "HOSTUNREACH"
	// ErrCodeNetUnreach indicates the target network is unreachable.
	ErrCodeNetUnreach ErrorCode = "NETUNREACH"
	// ErrCodeDenied indicates a permission error or unsupported configuration.
	ErrCodeDenied ErrorCode = "DENIED"
	// ErrCodeInvalidRequest indicates bad parameters from the caller.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeUnknown is the catch-all for unclassified errors.
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// TracerouteError is a classified error from a traceroute operation.
type TracerouteError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *TracerouteError) Error() string {
	return e.Message
}

func (e *TracerouteError) Unwrap() error {
	return e.Err
}

// ErrorResponse is the JSON body returned on error from the HTTP API.
// PartialResults holds the hops probed before a trace failed mid-way.
type ErrorResponse struct {
	Code           ErrorCode       `json:"code"`
	Message        string          `json:"message"`
	PartialResults *result.Results `json:"partial_results,omitempty"`
}

// DNSError is a sentinel wrapper for DNS resolution failures
// so they can be classified at the HTTP boundary.
type DNSError struct {
	Host string
	Err  error
}

func (e *DNSError) Error() string {
	return fmt.Sprintf("failed to resolve host %q: %s", e.Host, e.Err)
}

func (e *DNSError) Unwrap() error {
	return e.Err
}

// InvalidParamsError represents a parameter outside of its accepted range
type InvalidParamsError struct {
	Field string
	Err   error
}

func (e *InvalidParamsError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Err)
}

func (e *InvalidParamsError) Unwrap() error {
	return e.Err
}

// PrivilegeError is returned when the OS refuses to open a raw socket
type PrivilegeError struct {
	Err error
}

func (e *PrivilegeError) Error() string {
	return fmt.Sprintf("raw sockets require elevated privileges, run as root or grant CAP_NET_RAW: %s", e.Err)
}

func (e *PrivilegeError) Unwrap() error {
	return e.Err
}

// CapabilityError is returned when a socket cannot be opened for a reason
// other than missing privileges
type CapabilityError struct {
	Op  string
	Err error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("failed to %s: %s", e.Op, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// errnoCodes maps the socket errors a trace can surface to their code
var errnoCodes = map[syscall.Errno]ErrorCode{
	syscall.ECONNREFUSED: ErrCodeConnRefused,
	syscall.EHOSTUNREACH: ErrCodeHostUnreach,
	syscall.ENETUNREACH:  ErrCodeNetUnreach,
	syscall.EACCES:       ErrCodeDenied,
	syscall.EPERM:        ErrCodeDenied,
	syscall.ETIMEDOUT:    ErrCodeTimeout,
}

// ClassifyError inspects an error chain and returns a TracerouteError with the appropriate code.
func ClassifyError(err error) *TracerouteError {
	if err == nil {
		return nil
	}
	return &TracerouteError{Code: classify(err), Message: err.Error(), Err: err}
}

func classify(err error) ErrorCode {
	var (
		dnsErr       *DNSError
		invalidErr   *InvalidParamsError
		privilegeErr *PrivilegeError
		netDNSErr    *net.DNSError
		errno        syscall.Errno
		netErr       net.Error
	)
	switch {
	case errors.As(err, &dnsErr):
		return ErrCodeDNS
	case errors.As(err, &invalidErr):
		return ErrCodeInvalidRequest
	case errors.As(err, &privilegeErr):
		return ErrCodeDenied
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ErrCodeTimeout
	case errors.As(err, &netDNSErr):
		if netDNSErr.IsTimeout {
			return ErrCodeTimeout
		}
		return ErrCodeDNS
	case errors.As(err, &errno):
		if code, ok := errnoCodes[errno]; ok {
			return code
		}
		return ErrCodeUnknown
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrCodeTimeout
	}
	return ErrCodeUnknown
}
