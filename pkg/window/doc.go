// Package window описывает транспортную границу между двумя изолированными
// контекстами исполнения: единственный примитив "отправить сообщение в другой
// контекст" без гарантий доставки, порядка и корреляции ответов.
//
// Target - удалённая сторона, которой можно отправить сообщение.
// Window - локальный контекст, на который можно подписаться.
//
// Frame - реализация в памяти: каждая отправка доставляется в отдельной
// горутине, поэтому порядок между разными отправками не гарантируется.
//
//	host := window.New(window.Config{ID: "host", Origin: "https://host.example"})
//	remove := host.AddListener(func(ev *window.Event) {
//	    ev.StopImmediatePropagation()
//	    ...
//	})
//	defer remove()
//
//	host.PostMessage(plugin, []byte(`{"hello":true}`), "https://host.example")
package window
