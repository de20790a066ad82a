// Package connection maintains the push event stream from the KubeCloud
// backend.
//
// Client is a single server-sent-events stream. Manager owns the client
// lifecycle: it connects when a credential is present, reconnects with
// exponential backoff up to an attempt ceiling, defers reconnects while the
// agent is not visible, and tears the stream down when the network drops or
// the credential is cleared.
package connection
