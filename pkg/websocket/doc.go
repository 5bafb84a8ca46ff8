// Package websocket is a lightweight implementation of the WebSocket
// protocol (RFC 6455) for both roles: [Dial] opens a client-side
// connection, and [Accept] upgrades an incoming HTTP request into a
// server-side connection.
//
// It focuses on continuous asynchronous reading of text/binary
// messages, and enables occasional writing.
//
// It is designed primarily for ease of use. Additional design goals:
// reliability, maintainability, and efficiency. Each [Conn] is a single
// connection: there is no connection caching or automatic reconnection.
//
// [Accept] negotiates [subprotocols] (see [WithSubprotocols]). WebSocket
// [extensions] are not supported.
//
// [extensions]: https://www.iana.org/assignments/websocket/websocket.xhtml#extension-name
// [subprotocols]: https://www.iana.org/assignments/websocket/websocket.xhtml#subprotocol-name
package websocket
