// Package ws is a lightweight client-only implementation of the WebSocket
// protocol (RFC 6455), adapted as a reference transport.ClientTransport for
// nexrpc.
//
// It focuses on continuous asynchronous reading of binary messages (the RPC
// core only ever sends/receives whole binary frames) and occasional
// writing. Connection pooling and proactive reconnection are not provided,
// here or in pkg/rpcclient (which has no retry or backoff either); this
// package's job stops at one dialed connection.
//
// WebSocket [extensions] and [subprotocols] are not supported.
//
// [extensions]: https://www.iana.org/assignments/websocket/websocket.xhtml#extension-name
// [subprotocols]: https://www.iana.org/assignments/websocket/websocket.xhtml#subprotocol-name
package ws
