// Package zento provides guest identity reconciliation for the zento finance
// tracker: anonymous bearer sessions, per request owner resolution, and the
// transactional merge of a guest identity into a signed in account.
//
// Anonymous sessions:
//   - IssueToken produces a 256 bit url safe token and its SHA-256 hash. Only
//     the hash is persisted by AnonymousSessions; the plaintext is handed to
//     the client once, in the zento_anon cookie.
//   - Resolve updates last_seen_at on a detached goroutine. Failures are
//     logged and never reach the request.
//
// Owner resolution:
//   - Resolver.ResolveOwner prefers the signed in identity, then the bearer
//     token, and provisions a guest identity only on writes. GuestGate wraps it
//     for go-router handlers and caches the Resolution in request locals.
//
// Merge:
//   - MergeEngine.Merge moves categories and transactions from the guest to
//     the account in one transaction, collapsing categories whose names match
//     under Unicode case folding, then deletes the guest sessions and the guest
//     identity. Payment sources are not merged.
//   - SignInMerger runs the merge from the sign-in hook. MergeConfirmation and
//     MergeController expose the explicit import/discard variant.
//
// Activity sinks:
//   - ActivitySink receives guest lifecycle events best-effort, errors are
//     logged.
package zento
