// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunSignup, RunIssueChallenge, RunLogin, etc.) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. This keeps the Engine type thin and lets each flow be
// tested with stub dependencies.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, password hasher,
// token issuer, notification dispatch, audit and metrics. They do NOT own any
// of these resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import accountcore (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
