package flows

import (
	"context"
	"io"
	"strings"
)

// RegisterFailureKind classifies register flow failures for root-level
// mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureNotReady
	RegisterFailureValidation
	RegisterFailurePasswordPolicy
	RegisterFailureAvatarMissing
	RegisterFailureHash
	RegisterFailureUpload
	RegisterFailureDuplicate
	RegisterFailureStore
)

// RegisterInput is the flow-local registration request.
type RegisterInput struct {
	Username   string
	Email      string
	FullName   string
	Password   string
	Avatar     *FileInput
	CoverImage *FileInput
}

// RegisterResult carries either the created record or failure metadata.
type RegisterResult struct {
	Failure RegisterFailureKind
	Err     error
	Fields  map[string]string
	User    *UserRecord
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	MinPasswordLength int

	ValidateShape    func(RegisterInput) map[string]string
	FindByIdentifier func(ctx context.Context, identifier string) (*UserRecord, error)
	IsNotFound       func(error) bool
	HashPassword     func(string) (string, error)
	Upload           func(ctx context.Context, name string, r io.Reader) (string, error)
	CreateUser       func(context.Context, CreateRecord) (*UserRecord, error)
	IsDuplicate      func(error) bool
}

// RunRegister normalizes and validates input, checks username and email
// uniqueness, hashes the password, uploads the avatar (and cover image
// when present), and creates the user record. The avatar is required.
// Uniqueness is checked before any upload; the atomic create backstops
// concurrent registrations, and both paths classify as
// RegisterFailureDuplicate.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) RegisterResult {
	if deps.HashPassword == nil || deps.Upload == nil || deps.CreateUser == nil {
		return RegisterResult{Failure: RegisterFailureNotReady}
	}

	in.Username = strings.ToLower(strings.TrimSpace(in.Username))
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)

	if deps.ValidateShape != nil {
		if fields := deps.ValidateShape(in); len(fields) > 0 {
			return RegisterResult{
				Failure: RegisterFailureValidation,
				Fields:  fields,
			}
		}
	}

	if len(in.Password) < deps.MinPasswordLength {
		return RegisterResult{Failure: RegisterFailurePasswordPolicy}
	}

	if deps.FindByIdentifier != nil {
		for _, identifier := range []string{in.Username, in.Email} {
			_, err := deps.FindByIdentifier(ctx, identifier)
			switch {
			case err == nil:
				return RegisterResult{Failure: RegisterFailureDuplicate}
			case deps.IsNotFound != nil && deps.IsNotFound(err):
			default:
				return RegisterResult{
					Failure: RegisterFailureStore,
					Err:     err,
				}
			}
		}
	}

	if in.Avatar == nil || in.Avatar.Reader == nil {
		return RegisterResult{Failure: RegisterFailureAvatarMissing}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return RegisterResult{
			Failure: RegisterFailureHash,
			Err:     err,
		}
	}
	in.Password = ""

	avatarURL, err := deps.Upload(ctx, in.Avatar.Name, in.Avatar.Reader)
	if err != nil {
		return RegisterResult{
			Failure: RegisterFailureUpload,
			Err:     err,
		}
	}

	var coverURL string
	if in.CoverImage != nil && in.CoverImage.Reader != nil {
		coverURL, err = deps.Upload(ctx, in.CoverImage.Name, in.CoverImage.Reader)
		if err != nil {
			return RegisterResult{
				Failure: RegisterFailureUpload,
				Err:     err,
			}
		}
	}

	user, err := deps.CreateUser(ctx, CreateRecord{
		Username:      in.Username,
		Email:         in.Email,
		FullName:      in.FullName,
		PasswordHash:  hash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	})
	if err != nil {
		if deps.IsDuplicate != nil && deps.IsDuplicate(err) {
			return RegisterResult{
				Failure: RegisterFailureDuplicate,
				Err:     err,
			}
		}
		return RegisterResult{
			Failure: RegisterFailureStore,
			Err:     err,
		}
	}

	return RegisterResult{
		Failure: RegisterFailureNone,
		User:    user,
	}
}
