package fetcher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind names a class of fetch failure
type ErrorKind string

// Error kind constants
const (
	KindTimeout           ErrorKind = "timeout"
	KindDNSNotFound       ErrorKind = "dns-not-found"
	KindTLS               ErrorKind = "tls-error"
	KindConnectionRefused ErrorKind = "connection-refused"
	KindNetwork           ErrorKind = "other-network-error"
)

// FetchError is returned by Fetch for every failure; it is never retried
type FetchError struct {
	Kind    ErrorKind
	URL     string // URL being requested when the failure happened
	Message string // Human-readable summary
	Err     error  // Underlying cause, may be nil
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// newError builds a FetchError without an underlying cause
func newError(kind ErrorKind, rawURL, msg string) *FetchError {
	return &FetchError{Kind: kind, URL: rawURL, Message: msg}
}

// ClassifyError determines the error kind from a Go error
// Returns a FetchError carrying the kind and a human-readable message
func ClassifyError(rawURL string, err error) *FetchError {
	if err == nil {
		return nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}

	kind, msg := classify(err)
	return &FetchError{Kind: kind, URL: rawURL, Message: msg, Err: err}
}

func classify(err error) (ErrorKind, string) {
	// Check for timeout errors
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, "request timeout"
	}

	// DNS errors carry their own timeout flag, so check them before net.Error
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout, "DNS lookup timeout"
		}
		return KindDNSNotFound, "DNS lookup failed"
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout, "request timeout"
	}

	// Check for TLS/certificate errors
	var unknownAuthority x509.UnknownAuthorityError
	var certInvalid x509.CertificateInvalidError
	var hostnameErr x509.HostnameError
	var recordErr tls.RecordHeaderError
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &unknownAuthority) || errors.As(err, &certInvalid) ||
		errors.As(err, &hostnameErr) || errors.As(err, &verifyErr) {
		return KindTLS, "certificate error"
	}
	if errors.As(err, &recordErr) {
		return KindTLS, "TLS handshake failed"
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return KindConnectionRefused, "connection refused"
	}

	errMsg := err.Error()

	if strings.Contains(errMsg, "certificate") || strings.Contains(errMsg, "x509") {
		return KindTLS, "certificate error"
	}
	if strings.Contains(errMsg, "tls") || strings.Contains(errMsg, "TLS") {
		return KindTLS, "TLS handshake failed"
	}
	if strings.Contains(errMsg, "connection refused") {
		return KindConnectionRefused, "connection refused"
	}
	if strings.Contains(errMsg, "no such host") {
		return KindDNSNotFound, "host not found"
	}
	if strings.Contains(errMsg, "connection reset") {
		return KindNetwork, "connection reset"
	}
	if strings.Contains(errMsg, "network is unreachable") {
		return KindNetwork, "network unreachable"
	}

	// Default to network error for other cases
	return KindNetwork, errMsg
}
