package server

import (
	"crypto/tls"
	"fmt"
	"net"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// NewSecurityLayer returns a TLS listener when both certificate files are
// set, and a plain one otherwise.
func NewSecurityLayer(certFile, keyFile string) model.SecurityLayer {
	if certFile != "" && keyFile != "" {
		return NewTLSListener(certFile, keyFile)
	}
	return NewPlainListener()
}

// TLSListener serves connections over TLS 1.2 or later.
type TLSListener struct {
	certFileName       string
	privateKeyFileName string
}

func NewTLSListener(certFileName, privateKeyFileName string) *TLSListener {
	return &TLSListener{
		certFileName:       certFileName,
		privateKeyFileName: privateKeyFileName,
	}
}

// Listen loads the key pair and listens on addr.
func (l *TLSListener) Listen(protocol, addr string) (net.Listener, error) {
	cert, err := tls.LoadX509KeyPair(l.certFileName, l.privateKeyFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return tls.Listen(protocol, addr, &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	})
}

// PlainListener serves unencrypted connections. Use it only behind a
// TLS-terminating proxy.
type PlainListener struct{}

func NewPlainListener() *PlainListener {
	return &PlainListener{}
}

func (l *PlainListener) Listen(protocol, addr string) (net.Listener, error) {
	return net.Listen(protocol, addr)
}
