// Package identity provides the account and credential core for an academic
// administration backend: registration approval, credential hashing and
// verification, brute-force lockout, dual access/refresh token issuance, and
// password-reset flows.
//
// Account lifecycle:
//   - Accounts carry an AccountStatus persisted via Bun. A new registration is
//     created as pending; an admin moves it to approved or rejected through
//     the RegistrationWorkflow, which stamps the audit columns and notifies
//     the account holder best-effort.
//   - Login requires both an approved status and the is_active flag. Lockout
//     state (failed_attempts, locked_until) is maintained with single-statement
//     atomic updates so concurrent attempts cannot race past the threshold.
//
// Tokens:
//   - TokenService signs short-lived access tokens and long-lived refresh
//     tokens with distinct secrets. Refresh re-verifies the account is still
//     approved and active before minting a new access token.
//   - middleware/jwtware is the request-time gate other subsystems mount to
//     resolve the bearer token into claims (account id, role, email).
//
// Notifications:
//   - Notifier is a fire-and-forget collaborator for approval and reset
//     emails. Delivery runs after the state transition commits and failures
//     are logged, never rolled back.
package identity
