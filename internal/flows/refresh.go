package flows

import "context"

// RefreshFailureKind classifies refresh flow failures for root-level
// mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNotReady
	RefreshFailureDecode
	RefreshFailureRateLimited
	RefreshFailureReuse
	RefreshFailureUserNotFound
	RefreshFailureStore
	RefreshFailureIssue
)

// RefreshResult carries either the rotated token pair or failure
// metadata. UserID is set as soon as the presented token decodes, so
// callers can attribute failures.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	UserID       string
	User         *UserRecord
	AccessToken  string
	RefreshToken string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	VerifyRefresh    func(token string) (userID string, err error)
	CheckRefreshRate func(ctx context.Context, userID string) error

	IssueRefreshToken func(userID string) (string, error)
	Rotate            func(ctx context.Context, userID, presented, next string) error
	IsReuse           func(error) bool
	IsNotFound        func(error) bool

	FindByID         func(ctx context.Context, userID string) (*UserRecord, error)
	IssueAccessToken func(userID string) (string, error)
}

// RunRefresh rotates a refresh token and issues a new pair. The rotate
// step is an atomic compare-and-set against the stored token: a token
// that verifies cryptographically but does not match the stored value
// is classified as RefreshFailureReuse, which makes every refresh
// token single-use even under concurrent presentation. The user lookup
// and both token issues happen before the compare-and-set, so the
// stored token only changes when the caller receives the new pair.
func RunRefresh(ctx context.Context, presented string, deps RefreshDeps) RefreshResult {
	if deps.VerifyRefresh == nil ||
		deps.IssueRefreshToken == nil ||
		deps.Rotate == nil ||
		deps.FindByID == nil ||
		deps.IssueAccessToken == nil {
		return RefreshResult{Failure: RefreshFailureNotReady}
	}

	userID, err := deps.VerifyRefresh(presented)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureDecode,
			Err:     err,
		}
	}

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, userID); err != nil {
			return RefreshResult{
				Failure: RefreshFailureRateLimited,
				Err:     err,
				UserID:  userID,
			}
		}
	}

	user, err := deps.FindByID(ctx, userID)
	if err != nil {
		if deps.IsNotFound != nil && deps.IsNotFound(err) {
			return RefreshResult{
				Failure: RefreshFailureUserNotFound,
				Err:     err,
				UserID:  userID,
			}
		}
		return RefreshResult{
			Failure: RefreshFailureStore,
			Err:     err,
			UserID:  userID,
		}
	}

	access, err := deps.IssueAccessToken(userID)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureIssue,
			Err:     err,
			UserID:  userID,
		}
	}

	next, err := deps.IssueRefreshToken(userID)
	if err != nil {
		return RefreshResult{
			Failure: RefreshFailureIssue,
			Err:     err,
			UserID:  userID,
		}
	}

	if err := deps.Rotate(ctx, userID, presented, next); err != nil {
		switch {
		case deps.IsReuse != nil && deps.IsReuse(err):
			return RefreshResult{
				Failure: RefreshFailureReuse,
				Err:     err,
				UserID:  userID,
			}
		case deps.IsNotFound != nil && deps.IsNotFound(err):
			return RefreshResult{
				Failure: RefreshFailureUserNotFound,
				Err:     err,
				UserID:  userID,
			}
		default:
			return RefreshResult{
				Failure: RefreshFailureStore,
				Err:     err,
				UserID:  userID,
			}
		}
	}

	return RefreshResult{
		Failure:      RefreshFailureNone,
		UserID:       userID,
		User:         user,
		AccessToken:  access,
		RefreshToken: next,
	}
}
