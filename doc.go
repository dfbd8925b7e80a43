// Package accounts implements a user-account backend engine: credential
// registration and login, short-lived JWT access tokens with rotating
// server-persisted refresh tokens, profile and avatar management, and a
// channel-subscription lookup.
//
// The package is the public surface. It exposes [Engine], [Builder],
// [Config], the error taxonomy, and the collaborator interfaces
// ([UserStore], [SubscriptionStore], [Uploader], [Validator]). Flow
// orchestration lives under internal/ and is never exported. HTTP
// transport is deliberately out of scope: [middleware.Guard] and
// examples/http-server show one binding, but the engine itself only
// deals in tokens, records, and error kinds.
//
// # Token model
//
// Access tokens are stateless: validity is signature plus expiry. Refresh
// tokens are stateful: the single currently valid value is persisted on
// the user record and rotated atomically on every successful refresh or
// login. Losing a rotation race yields [ErrRefreshReuse], which is the
// intended single-use semantics, not a bug.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
package accounts
