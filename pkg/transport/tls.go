package transport

import "crypto/tls"

// TLSOptions relaxes TLS for hub connections. Hubs present
// self-signed certificates, and some firmware only negotiates RSA
// cipher suites.
type TLSOptions struct {
	// InsecureSkipVerify disables certificate chain verification.
	InsecureSkipVerify bool

	// DisableECCCiphers restricts the handshake to RSA key exchange
	// suites. Required for Atom hubs. This caps the connection at
	// TLS 1.2 since 1.3 removed RSA key exchange.
	DisableECCCiphers bool
}

// nonECCCipherSuites are the RSA key exchange suites Atom hub
// firmware accepts.
var nonECCCipherSuites = []uint16{
	tls.TLS_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_RSA_WITH_AES_256_CBC_SHA,
}

// buildTLSConfig translates TLSOptions into a tls.Config for the
// WebSocket dialer. Nil options mean strict defaults.
func buildTLSConfig(opts *TLSOptions) *tls.Config {
	if opts == nil {
		return nil
	}
	cfg := &tls.Config{
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}
	if opts.DisableECCCiphers {
		cfg.MaxVersion = tls.VersionTLS12
		cfg.CipherSuites = nonECCCipherSuites
	}
	return cfg
}
