// Package middleware adapts HTTP requests to accounts.Engine calls.
//
// [Guard] extracts the access token (cookie first, bearer header
// second), authenticates it, and injects the resolved user into the
// request context for [UserFromContext].
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It never
// parses tokens or touches storage itself; every decision is delegated
// to Engine.Authenticate.
package middleware
