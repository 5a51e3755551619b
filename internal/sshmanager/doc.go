// Package sshmanager owns the live SSH shell sessions of the process.
//
// A [Registry] maps opaque session ids to connections. [Registry.Connect]
// walks a new connection through its lifecycle:
//
//	disconnected -> connecting -> handshaking -> authenticating ->
//	channel_open -> shell_active -> closing -> closed
//
// The TCP dial is bounded by [Options.ConnectTimeout] and the SSH handshake
// by [Options.HandshakeTimeout]. Authentication uses a password, a private
// key file (optionally passphrase-protected) or a running ssh-agent. Host
// keys are checked by a [HostKeyVerifier] under a [HostKeyPolicy]. A
// session id is only minted once the shell is running, so a failed attempt
// never leaves anything in the registry.
//
// # Errors
//
// Every operation returns a *[Error] whose [Kind] tells the caller which
// phase failed: Config, RateLimited, Transport, Handshake, HostKey, Auth,
// Channel, Pty, Shell, NotFound, Write, Read or Resize.
//
// # Locking
//
// The registry map has its own RWMutex, held only while the map is read or
// changed. Each connection has a mutex serializing send, read, resize and
// teardown, so I/O on one session never waits on another. Connection state
// sits behind a third, smaller lock so that listing sessions does not wait
// on slow I/O.
//
// # Teardown
//
// [Registry.Disconnect] removes the session first and then closes it:
// EOF to the shell, a bounded wait for the peer's EOF, channel close, a
// bounded wait for the close to be confirmed, then the SSH client and any
// agent connection. All steps run regardless of earlier failures; failures
// are logged and recorded as teardown_error events.
//
// # Events and rate limiting
//
// Connect outcomes and disconnects are kept in an [EventLog] (last 100 per
// user@host:port target). An optional [RateLimiter] caps attempts per
// target per minute and blocks a target after consecutive failures.
package sshmanager
