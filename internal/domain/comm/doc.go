// Package comm holds the messaging domain: the envelope wire format, the
// protocol codec registry, topic and buffer-key conventions, and the ports
// (Transport, OutboundBuffer, Observer, IdentityDirectory, CredentialIssuer)
// that a communication node is assembled from.
package comm
