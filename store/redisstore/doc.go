// Package redisstore implements accountcore.CredentialStore on Redis.
//
// # Layout
//
// Each account is one JSON value at "<prefix>:acct:<identity>", with a
// secondary index "<prefix>:id:<id>" holding the identity. Create runs as a
// Lua script so the existence check and both writes are atomic. Update uses
// WATCH/MULTI optimistic transactions and retries on contention, so the
// update callback may run more than once.
//
// # What this package must NOT do
//
//   - Set TTLs on account keys; accounts are durable.
//   - Interpret account fields beyond identity and id.
package redisstore
