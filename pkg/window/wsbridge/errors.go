package wsbridge

import "errors"

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrHandshakeFailed  = errors.New("handshake failed")
	ErrInvalidCert      = errors.New("invalid certificate")
	ErrInvalidKey       = errors.New("invalid private key")
	ErrCertNotTrusted   = errors.New("certificate not signed by trusted CA")
	ErrPeerIDMismatch   = errors.New("peer ID does not match expected")
	ErrInvalidProof     = errors.New("invalid identity proof")
	ErrInvalidFrame     = errors.New("invalid frame")
)
