package flows

import (
	"io"
	"time"
)

// UserRecord is the flow-local user model. The root engine converts
// between this and its public types.
type UserRecord struct {
	ID            string
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
	CreatedAt     time.Time
}

// CreateRecord is the flow-local input for user creation. Username and
// Email arrive already normalized.
type CreateRecord struct {
	Username      string
	Email         string
	FullName      string
	PasswordHash  string
	AvatarURL     string
	CoverImageURL string
}

// FileInput is a named reader handed to the upload dependency.
type FileInput struct {
	Name   string
	Reader io.Reader
}

// Deps groups flow dependency sets. The root engine builds this once
// and delegates each operation to the matching Run function.
type Deps struct {
	Register     RegisterDeps
	Login        LoginDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	Password     PasswordDeps
	Authenticate AuthDeps
	Profile      ProfileDeps
	Image        ImageDeps
}
