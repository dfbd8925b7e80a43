// Package password implements the Argon2id password hashing used by the
// accounts engine. Hashes are stored in PHC string format so cost
// parameters travel with the digest and can be upgraded over time.
package password
