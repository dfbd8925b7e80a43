// Package jwt wraps golang-jwt/v5 as a stateless two-kind token service:
// short-lived access tokens and long-lived refresh tokens, each signed
// with its own secret. Verification classifies failures as expired or
// malformed so callers can map them to distinct error kinds.
package jwt
