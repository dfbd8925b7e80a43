// Package validate provides the go-playground/validator implementation
// of the accounts input-shape validator.
package validate
