package model

import (
	"context"
	"net"
)

// Network is the transport every server listener binds on.
const Network = "tcp"

// SecurityLayer opens the listener a Server accepts connections on, either
// plain or TLS terminated.
type SecurityLayer interface {
	Listen(network, addr string) (net.Listener, error)
}

// Server is a long-running transport with graceful shutdown.
type Server interface {
	// Start blocks serving on a listener obtained from layer.
	Start(layer SecurityLayer) error
	// Stop drains in-flight calls until ctx is done and then closes
	// whatever is left.
	Stop(ctx context.Context) error
	Address() string
}
