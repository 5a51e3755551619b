// Package sshterminal provides the interactive channel of one SSH
// connection: a session channel with a PTY and a login shell, polled
// output, resizing and graceful teardown.
//
// It wraps golang.org/x/crypto/ssh. A Terminal is opened over an existing
// *ssh.Client (owned by [sshmanager.Registry]) and lives exactly as long as
// that client.
//
// # Setup
//
// [Open] performs three steps and reports which one failed through
// [SetupError.Stage]:
//
//  1. [StageChannel]: open the "session" channel.
//  2. [StagePty]: request a PTY ("xterm-256color", 80x24 by default).
//  3. [StageShell]: start the user's login shell.
//
// # Output
//
// A background goroutine copies channel output into an [OutputBuffer].
// [Terminal.ReadOutput] never waits: it drains up to [ReadChunkSize] bytes
// that are already buffered and returns "" when nothing is pending. Invalid
// UTF-8 is replaced with U+FFFD; a multi-byte character split across two
// network reads is held back until it is complete.
//
// The buffer is bounded. When it fills, the goroutine stops reading and the
// SSH channel window holds the remote back, so no output is lost. After the
// remote ends the stream, ReadOutput returns what is left and then io.EOF.
//
// # Teardown
//
// [Terminal.Close] signals EOF, waits (bounded) for the peer's EOF, closes
// the channel and waits (bounded) for the close to be confirmed. Every step
// runs even if an earlier one failed; the failures are returned together so
// the caller can log them.
//
// # Limits
//
//   - Terminal dimensions: capped at [MaxTermCols] x [MaxTermRows].
//   - Input size: [MaxInputMessageSize] per message on the WebSocket surface.
//   - Message rate: [MessageLimiter] ([MessageRateLimit]/s, burst
//     [MessageRateBurst]).
package sshterminal
