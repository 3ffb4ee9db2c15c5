// Package auth implements the authentication core of the civicms council
// backend: stateless JWT access/refresh pairs, account activation and
// password-reset single-use tokens, and agenda attendance-confirmation
// tokens.
//
// Token families:
//   - Access and refresh tokens are HS256 JWTs carrying only {subject,
//     issuer, expiry}. Roles are resolved by the orchestrator from the
//     credential store, never embedded in the token. There is no revocation
//     list; a token stays valid until its expiry elapses.
//   - Single-use tokens (activation, password reset) are random opaque
//     strings persisted on the user row with an absolute expiry. They are
//     overwritten on every generate call and cleared atomically on first
//     redemption, so a second redemption of the same string fails.
//   - Agenda confirmation tokens are JWTs signed with a separate secret,
//     expiring a fixed lead window before the session starts.
//
// Notifications:
//   - Flows that send mail emit Notification events after the owning
//     transaction commits. The MailDispatcher consumes them on a fixed-size
//     worker pool; delivery failures are logged and never surfaced to the
//     HTTP caller.
package auth
