// Package plugin реализует handshake между хостом и встроенным плагином
// поверх bridge.Socket.
//
// Последовательность:
//
//	plugin: регистрирует методы и одноразовый канал "init", шлёт "ready" (true)
//	host:   получает "ready", регистрирует хуки, шлёт "init" {data, settings, hooks}
//	plugin: проверяет data/settings валидатором и отвечает списком своих методов
//	host:   строит прокси для каждого метода
//
// Хост:
//
//	conn, err := plugin.Initiate(ctx, plugin.InitRequest{
//	    Data:  map[string]any{"user": "alice"},
//	    Hooks: map[string]bridge.Handler{"error": onPluginError},
//	}, plugin.HostConfig{Self: host, Target: frame, Timeout: 5 * time.Second})
//	if err != nil {
//	    return err
//	}
//	defer conn.Terminate()
//
//	result, err := conn.Call(ctx, "getData", nil)
//
// Плагин:
//
//	session, err := plugin.Register(ctx, plugin.RegisterRequest{
//	    Methods: map[string]bridge.Handler{"getData": getData},
//	}, plugin.PluginConfig{Self: frame, Parent: host})
package plugin
