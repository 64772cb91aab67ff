// Package store provides the SQLite-backed record store for checkouts,
// settings, and picture attachments.
//
// Three record collections mirror the handoff pipeline:
//   - checkouts: master mirror of everything the server knows about
//   - my_checkouts: checkouts this device owns or has completed but not
//     yet uploaded
//   - pending: the upload queue; exactly the records that still need to
//     reach the server
//
// All writes are whole-record replace keyed by checkout ID; there are no
// partial-field updates and no cross-record transactions except
// FinishUpload, which must delete from pending and my_checkouts
// atomically to avoid duplicating completed data on the server.
//
// Singleton records (device settings, sync cursor, form) live in their own
// table, as do picture attachments addressed by integer IDs.
//
// # Storage namespace
//
// The schema carries a namespace string (Namespace). Bump it whenever the
// record encoding changes incompatibly: Open purges all data written under
// any other namespace, matching the prefix-directory purge of earlier
// clients.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - single writer connection: the UI tasks and the background sync loop
//     interleave freely; SQLite serializes the writes
package store
