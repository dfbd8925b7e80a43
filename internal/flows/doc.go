// Package flows holds the orchestration logic for every engine
// operation, decoupled from the root package through dependency
// structs of function fields. Each RunX function classifies failures
// into a flow-local FailureKind; the root engine maps kinds to its
// public sentinel errors.
package flows
