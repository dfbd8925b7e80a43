// Package store provides the Redis-backed implementations of the
// accounts collaborator interfaces: a user store on hashes plus
// username/email index keys, and a subscription store on sets.
// Uniqueness and refresh-token rotation run as Lua scripts so they are
// atomic under concurrent callers.
package store
