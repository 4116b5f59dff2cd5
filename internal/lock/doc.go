// Package lock implements the confidential mode of the journal.
//
// Every user's journal starts locked. Manager.Unlock re-authenticates the
// user and hands out an opaque token; journal requests present that token
// and Manager.Check refreshes the session on each use. Sessions idle for
// longer than the TTL are locked again, both lazily on Check and by the
// cleanup routine started with Manager.Run.
package lock
