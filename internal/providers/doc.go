// Package providers groups the capabilities the web terminal exposes.
//
// Available Providers:
//   - Terminal: one shell under a pseudo-terminal, serialized behind a
//     session lock, with incremental output decoding
//
// The HTTP and WebSocket layers in internal/api depend on providers; providers
// never import internal/api.
package providers
