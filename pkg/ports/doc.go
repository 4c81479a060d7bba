// Package ports defines the driven-side interfaces of the toolgate core:
// credential persistence, SSE transport, and outbound delivery channels.
// Adapters under pkg/adapters provide the concrete implementations.
package ports
