package plugin

import "errors"

var (
	ErrHandshakeTimeout = errors.New("handshake timed out")
	ErrNoMethodList     = errors.New("plugin did not return method list")
	ErrUnknownMethod    = errors.New("unknown method")
)
