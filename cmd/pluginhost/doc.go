// Команда pluginhost - демонстрационный хост плагинов.
//
// Принимает плагины по WebSocket на BRIDGE_FRAME_PATH, для каждого выполняет
// handshake с хуками "error" и "notify" и по одному разу вызывает все методы,
// которые вернул плагин. Метрики сокетов отдаются на BRIDGE_METRICS_PATH.
//
// Конфигурация читается из окружения (см. internal/config):
//
//	PORT=8080 BRIDGE_HOST_ORIGIN=http://localhost:8080 LOG_DEV=true ./pluginhost
//
// SIGINT, SIGTERM: плавная остановка.
package main
