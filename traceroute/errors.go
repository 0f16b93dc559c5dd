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

	"github.com/DataDog/datalink-traceroute/common"
	"github.com/DataDog/datalink-traceroute/iface"
	"github.com/DataDog/datalink-traceroute/packets"
)

// ErrorCode is the classification reported by the CLI and the HTTP API
type ErrorCode string

const (
	// ErrCodeDNS indicates a DNS resolution failure.
	ErrCodeDNS ErrorCode = "DNS"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeHostUnreach indicates the target host is unreachable.
	ErrCodeHostUnreach ErrorCode = "HOSTUNREACH"
	// ErrCodeNetUnreach indicates the target network is unreachable.
	ErrCodeNetUnreach ErrorCode = "NETUNREACH"
	// ErrCodeDenied indicates missing raw socket privileges or an unsupported platform.
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
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
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

// InvalidTargetError represents an invalid target specification (bad port,
// malformed address, no IPv4 address).
type InvalidTargetError struct {
	Err error
}

func (e *InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid target: %s", e.Err)
}

func (e *InvalidTargetError) Unwrap() error {
	return e.Err
}

// classification maps an error chain to a code when match accepts it
type classification struct {
	code  ErrorCode
	match func(error) bool
}

// classifications are tried in order, first match wins
var classifications = []classification{
	{ErrCodeDNS, as[*DNSError]},
	{ErrCodeInvalidRequest, isInvalidRequest},
	{ErrCodeDenied, func(err error) bool { return errors.Is(err, packets.ErrUnsupportedPlatform) }},
	{ErrCodeTimeout, isTimeout},
	// resolver failures that are not timeouts
	{ErrCodeDNS, as[*net.DNSError]},
}

var errnoCodes = map[syscall.Errno]ErrorCode{
	syscall.EHOSTUNREACH: ErrCodeHostUnreach,
	syscall.ENETUNREACH:  ErrCodeNetUnreach,
	syscall.EACCES:       ErrCodeDenied,
	syscall.EPERM:        ErrCodeDenied,
	syscall.EAFNOSUPPORT: ErrCodeDenied,
	syscall.ETIMEDOUT:    ErrCodeTimeout,
}

// ClassifyError walks the error chain and wraps err in a TracerouteError
// carrying the matching code, ErrCodeUnknown when nothing matches
func ClassifyError(err error) *TracerouteError {
	if err == nil {
		return nil
	}
	return &TracerouteError{Code: codeOf(err), Message: err.Error(), Err: err}
}

func codeOf(err error) ErrorCode {
	for _, c := range classifications {
		if c.match(err) {
			return c.code
		}
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if code, ok := errnoCodes[errno]; ok {
			return code
		}
	}
	return ErrCodeUnknown
}

func as[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

// isInvalidRequest reports whether err is a caller mistake rather than a
// runtime failure
func isInvalidRequest(err error) bool {
	return as[*InvalidTargetError](err) ||
		as[*ConfigError](err) ||
		as[*iface.NotFoundError](err) ||
		as[*iface.NoIPv4Error](err) ||
		as[*packets.FrameSizeError](err) ||
		as[*common.UnknownProtocolError](err)
}

// isTimeout covers deadlines, cancellation and network timeouts. A cancelled
// run is reported as a timeout since the caller gave up waiting.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
