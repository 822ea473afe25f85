package fetcher

import (
	"crypto/tls"
	"crypto/x509"
	"strings"
	"time"
)

// TLSInfo holds TLS and certificate information from the final hop
type TLSInfo struct {
	Version           string `json:"version"`
	CertValid         bool   `json:"cert_valid"`
	CertExpiresAt     string `json:"cert_expires_at,omitempty"` // ISO8601 format
	CertDaysRemaining int    `json:"cert_days_remaining"`
	CertIssuer        string `json:"cert_issuer,omitempty"`
}

// extractTLSInfo analyzes the connection state of an HTTPS response
// Returns nil if the connection is not TLS
func extractTLSInfo(state *tls.ConnectionState, now time.Time) *TLSInfo {
	if state == nil {
		return nil
	}

	info := &TLSInfo{
		Version: tlsVersionString(state.Version),
	}

	if len(state.PeerCertificates) > 0 {
		cert := state.PeerCertificates[0] // First cert is the server's certificate

		info.CertValid = now.After(cert.NotBefore) && now.Before(cert.NotAfter)
		info.CertExpiresAt = cert.NotAfter.UTC().Format(time.RFC3339)
		info.CertDaysRemaining = int(cert.NotAfter.Sub(now).Hours() / 24)
		info.CertIssuer = issuerName(cert)
	}

	return info
}

// tlsVersionString converts TLS version constant to string
func tlsVersionString(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS1.0"
	case tls.VersionTLS11:
		return "TLS1.1"
	case tls.VersionTLS12:
		return "TLS1.2"
	case tls.VersionTLS13:
		return "TLS1.3"
	default:
		return "unknown"
	}
}

// issuerName extracts the issuer CN, falling back to Organization and then the DN
func issuerName(cert *x509.Certificate) string {
	if cert.Issuer.CommonName != "" {
		return cert.Issuer.CommonName
	}
	if len(cert.Issuer.Organization) > 0 {
		return strings.Join(cert.Issuer.Organization, ", ")
	}
	return cert.Issuer.String()
}
