// Package wsbridge переносит window.Target поверх WebSocket, чтобы хост и
// плагин могли работать в разных процессах.
//
// Каждое соединение - это Peer: Local() принимает входящие кадры как
// window.Frame, Remote() отправляет исходящие.
//
// # Сервер
//
//	cfg := wsbridge.DefaultServerConfig()
//	cfg.ID, cfg.Origin = "host", "https://host.example"
//	cfg.OnPeer = func(ctx context.Context, peer *wsbridge.Peer) {
//	    socket := bridge.NewSocket(peer.Local(), peer.Remote(), bridge.DefaultSocketConfig())
//	    ...
//	}
//	http.Handle("/frame", wsbridge.NewServer(cfg))
//
// # Клиент
//
//	cfg := wsbridge.DefaultClientConfig("ws://localhost:8080/frame")
//	cfg.ID, cfg.Origin = "plugin", "https://plugin.example"
//	peer, err := wsbridge.Dial(ctx, cfg)
//
// # Hello
//
// Перед обменом кадрами стороны представляются:
//  1. Клиент отправляет {"type":"hello","id","origin","certificate","nonce"}
//  2. Сервер проверяет сертификат и отвечает своим hello с подписью nonce клиента в "proof"
//  3. Клиент проверяет подпись и отправляет {"type":"proof"} с подписью nonce сервера
//
// С IdentityConfig ID партнёра берётся из CommonName сертификата, подписи -
// ECDSA над SHA-256 от nonce. Без него заявленный ID принимается как есть.
//
// # Кадр
//
//	version(1) | originLen(2) | dataLen(4) | origin | data
//
// При декодировании также принимается {"origin": "...", "data": {...}}.
package wsbridge
