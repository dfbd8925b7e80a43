package flows

import (
	"context"
	"io"
)

// ImageTarget selects which profile image an update applies to.
type ImageTarget int

const (
	ImageAvatar ImageTarget = iota
	ImageCover
)

// ImageFailureKind classifies profile-image update failures for
// root-level mapping.
type ImageFailureKind int

const (
	ImageFailureNone ImageFailureKind = iota
	ImageFailureNotReady
	ImageFailureMissingFile
	ImageFailureUpload
	ImageFailureUserNotFound
	ImageFailureStore
)

// ImageResult carries the updated record or failure metadata.
type ImageResult struct {
	Failure ImageFailureKind
	Err     error
	User    *UserRecord
}

// ImageDeps captures profile-image update dependencies.
type ImageDeps struct {
	Upload        func(ctx context.Context, name string, r io.Reader) (string, error)
	UpdateProfile func(ctx context.Context, userID string, avatarURL, coverURL *string) (*UserRecord, error)
	IsNotFound    func(error) bool
}

// RunUpdateImage uploads the file and persists its URL on the selected
// profile field.
func RunUpdateImage(ctx context.Context, userID string, file *FileInput, target ImageTarget, deps ImageDeps) ImageResult {
	if deps.Upload == nil || deps.UpdateProfile == nil {
		return ImageResult{Failure: ImageFailureNotReady}
	}

	if file == nil || file.Reader == nil {
		return ImageResult{Failure: ImageFailureMissingFile}
	}

	url, err := deps.Upload(ctx, file.Name, file.Reader)
	if err != nil {
		return ImageResult{
			Failure: ImageFailureUpload,
			Err:     err,
		}
	}

	var avatarURL, coverURL *string
	if target == ImageCover {
		coverURL = &url
	} else {
		avatarURL = &url
	}

	user, err := deps.UpdateProfile(ctx, userID, avatarURL, coverURL)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return ImageResult{
				Failure: ImageFailureUserNotFound,
				Err:     err,
			}
		}
		return ImageResult{
			Failure: ImageFailureStore,
			Err:     err,
		}
	}

	return ImageResult{
		Failure: ImageFailureNone,
		User:    user,
	}
}
