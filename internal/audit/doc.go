// Package audit implements async event dispatching for account lifecycle operations.
//
// # Components
//
//   - [Sink] - interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher] - buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event] - structured audit record with timestamp, type, account, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import accountcore or any sibling internal package.
//   - Record OTP codes, passwords or tokens.
package audit
