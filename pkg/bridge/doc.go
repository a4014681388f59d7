// Package bridge реализует протокол корреляции сообщений поверх
// ненадёжного, неупорядоченного транспорта window.Target/window.Window.
//
// Возможности:
//   - Именованные каналы: обработчик регистрируется по имени, последняя регистрация побеждает
//   - Request-Response с корреляцией по ID ({counter}-{random}-{timestamp})
//   - Одноразовые обработчики (Once) и каналы, зарегистрированные до подписки (Presets)
//   - Проверка отправителя: идентичность и origin, захваченный при создании сокета
//   - Детерминированное завершение (Terminate)
//
// # Пример
//
//	socket := bridge.NewSocket(host, plugin, bridge.DefaultSocketConfig())
//	defer socket.Terminate()
//
//	socket.CreateChannel("echo", func(ctx context.Context, payload json.RawMessage) (any, error) {
//	    return payload, nil
//	})
//
//	ch, _ := socket.CreateChannel("getData", nil)
//	reply, err := ch.SendAndWait(ctx, map[string]string{"key": "value"})
//
// # Формат сообщений
//
//	{"id": "0-9f2c4a1b7e3d-1700000000000", "name": "echo", "payload": {...}, "waitForResponse": true}
//
// Ошибка обработчика возвращается в ответе как:
//
//	{"$error": {"channel": "echo", "message": "..."}}
package bridge
