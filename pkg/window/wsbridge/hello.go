package wsbridge

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	helloType = "hello"
	proofType = "proof"
)

type helloMessage struct {
	Type        string `json:"type"`
	ID          string `json:"id,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Certificate string `json:"certificate,omitempty"` // X.509 в PEM, только с IdentityConfig
	Nonce       string `json:"nonce,omitempty"`
	Proof       []byte `json:"proof,omitempty"` // подпись nonce партнёра
}

type peerInfo struct {
	id     string
	origin string
}

type handshaker struct {
	localID  string
	origin   string
	identity *identity
	timeout  time.Duration
}

func newHandshaker(id, origin string, cfg *IdentityConfig, timeout time.Duration) (*handshaker, error) {
	h := &handshaker{localID: id, origin: origin, timeout: timeout}

	if cfg != nil {
		ident, err := newIdentity(cfg)
		if err != nil {
			return nil, err
		}

		h.identity = ident
		h.localID = ident.localID
	}

	return h, nil
}

// Шаг 1 (клиент): hello с nonce. Шаг 2 (сервер): hello с подписью nonce
// клиента. Шаг 3 (клиент): подпись nonce сервера.
func (h *handshaker) client(conn *websocket.Conn) (peerInfo, error) {
	h.setDeadline(conn)
	defer conn.SetReadDeadline(time.Time{})

	nonce := uuid.NewString()

	hello, err := h.hello(nonce, "")
	if err != nil {
		return peerInfo{}, err
	}

	if err := conn.WriteJSON(hello); err != nil {
		return peerInfo{}, fmt.Errorf("failed to send hello: %w", err)
	}

	var resp helloMessage
	if err := conn.ReadJSON(&resp); err != nil {
		return peerInfo{}, fmt.Errorf("failed to read hello: %w", err)
	}

	info, pub, err := h.accept(&resp)
	if err != nil {
		return peerInfo{}, err
	}

	if err := h.check(pub, nonce, resp.Proof); err != nil {
		return peerInfo{}, err
	}

	proof, err := h.prove(resp.Nonce)
	if err != nil {
		return peerInfo{}, err
	}

	if err := conn.WriteJSON(&helloMessage{Type: proofType, Proof: proof}); err != nil {
		return peerInfo{}, fmt.Errorf("failed to send proof: %w", err)
	}

	return info, nil
}

func (h *handshaker) server(conn *websocket.Conn) (peerInfo, error) {
	h.setDeadline(conn)
	defer conn.SetReadDeadline(time.Time{})

	var req helloMessage
	if err := conn.ReadJSON(&req); err != nil {
		return peerInfo{}, fmt.Errorf("failed to read hello: %w", err)
	}

	info, pub, err := h.accept(&req)
	if err != nil {
		return peerInfo{}, err
	}

	nonce := uuid.NewString()

	hello, err := h.hello(nonce, req.Nonce)
	if err != nil {
		return peerInfo{}, err
	}

	if err := conn.WriteJSON(hello); err != nil {
		return peerInfo{}, fmt.Errorf("failed to send hello: %w", err)
	}

	var proof helloMessage
	if err := conn.ReadJSON(&proof); err != nil {
		return peerInfo{}, fmt.Errorf("failed to read proof: %w", err)
	}

	if proof.Type != proofType {
		return peerInfo{}, fmt.Errorf("unexpected message %q, want %q", proof.Type, proofType)
	}

	if err := h.check(pub, nonce, proof.Proof); err != nil {
		return peerInfo{}, err
	}

	return info, nil
}

func (h *handshaker) hello(nonce, peerNonce string) (*helloMessage, error) {
	msg := &helloMessage{
		Type:   helloType,
		ID:     h.localID,
		Origin: h.origin,
		Nonce:  nonce,
	}

	if h.identity != nil {
		msg.Certificate = string(h.identity.certPEM)
	}

	if peerNonce != "" {
		proof, err := h.prove(peerNonce)
		if err != nil {
			return nil, err
		}

		msg.Proof = proof
	}

	return msg, nil
}

func (h *handshaker) accept(msg *helloMessage) (peerInfo, *ecdsa.PublicKey, error) {
	if msg.Type != helloType {
		return peerInfo{}, nil, fmt.Errorf("unexpected message %q, want %q", msg.Type, helloType)
	}

	if msg.Nonce == "" {
		return peerInfo{}, nil, fmt.Errorf("hello without nonce")
	}

	// Без сертификатов принимаем заявленный ID.
	if h.identity == nil {
		if msg.ID == "" {
			return peerInfo{}, nil, fmt.Errorf("hello without peer ID")
		}

		return peerInfo{id: msg.ID, origin: msg.Origin}, nil, nil
	}

	id, pub, err := h.identity.verifyPeer(msg.Certificate)
	if err != nil {
		return peerInfo{}, nil, err
	}

	return peerInfo{id: id, origin: msg.Origin}, pub, nil
}

func (h *handshaker) prove(nonce string) ([]byte, error) {
	if h.identity == nil {
		return nil, nil
	}

	return h.identity.sign(nonce)
}

func (h *handshaker) check(pub *ecdsa.PublicKey, nonce string, proof []byte) error {
	if h.identity == nil {
		return nil
	}

	return verifyProof(pub, nonce, proof)
}

func (h *handshaker) setDeadline(conn *websocket.Conn) {
	if h.timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(h.timeout))
	}
}
