// Команда pluginecho - демонстрационный плагин.
//
// Подключается к хосту по BRIDGE_URL, регистрирует методы "echo" и "getData",
// запрашивает хук "notify" и принимает init только с объектом в data.
//
//	BRIDGE_URL=ws://localhost:8080/frame BRIDGE_PLUGIN_ORIGIN=http://localhost:8081 ./pluginecho
package main
