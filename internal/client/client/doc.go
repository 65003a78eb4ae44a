// Package client is the remote API side of the sync engine.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) covering the
//     calls the push and delta agents make: create and delete of items and
//     notes, delta pulls since a watermark, and a health probe.
//  2. The wire models exchanged with the server (PushAck, ItemDelta,
//     NoteDelta, RemoteItem, RemoteNote).
//  3. An HTTP/JSON implementation (see HTTPClient) that authenticates with a
//     bearer token supplied by an oauth2.TokenSource and maps HTTP status
//     codes to sentinel errors.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors that callers match with
// errors.Is: ErrUnavailable (network failure, timeouts, 5xx), ErrUnauthorized
// (401/403) and ErrNotFound (404). Non-2xx responses are returned as
// *APIError carrying the status code and the server-provided detail.
//
// # Concurrency
//
// HTTPClient is safe for concurrent use. Every call honors ctx.
package client
