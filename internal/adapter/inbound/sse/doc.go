// Package sse implements the server-sent-event duplex transport: one
// long-lived outbound push stream per session, correlated with inbound
// messages POSTed to a separate endpoint carrying the session ID.
//
// Two variants share the contract and the test suite: Transport writes
// frames directly to the caller-owned http.ResponseWriter, while
// StreamTransport owns an internal frame queue that the HTTP handler
// drains into the response body.
package sse
