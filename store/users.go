package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clipstream/accounts"
)

const (
	fieldUsername     = "username"
	fieldEmail        = "email"
	fieldFullName     = "full_name"
	fieldPasswordHash = "password_hash"
	fieldAvatarURL    = "avatar_url"
	fieldCoverURL     = "cover_url"
	fieldRefreshToken = "refresh_token"
	fieldCreatedAt    = "created_at"
)

const (
	createStatusDuplicate = 0
	createStatusCreated   = 1
)

// Reserves the username and email index keys and writes the user hash
// in one atomic step.
const createUserScript = `
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("HSET", KEYS[3],
  "username", ARGV[2],
  "email", ARGV[3],
  "full_name", ARGV[4],
  "password_hash", ARGV[5],
  "avatar_url", ARGV[6],
  "cover_url", ARGV[7],
  "created_at", ARGV[8])
return 1
`

var createUserLua = redis.NewScript(createUserScript)

const (
	rotateStatusNotFound = 0
	rotateStatusRotated  = 1
	rotateStatusMismatch = 2
)

// Compare-and-set on the stored refresh token. A missing or different
// stored value reports a mismatch instead of overwriting, which is what
// makes refresh tokens single-use under concurrent presentation.
const rotateRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local current = redis.call("HGET", KEYS[1], "refresh_token")
if not current or current ~= ARGV[1] then
  return 2
end
redis.call("HSET", KEYS[1], "refresh_token", ARGV[2])
return 1
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// Users is a Redis-backed [accounts.UserStore]. Each user lives in a
// hash under prefix:user:{id}; username and email resolve through
// index keys holding the id.
type Users struct {
	redis  redis.UniversalClient
	prefix string
}

// NewUsers creates a [Users] store. prefix namespaces every key and
// defaults to "acct" when empty.
func NewUsers(redisClient redis.UniversalClient, prefix string) *Users {
	if prefix == "" {
		prefix = "acct"
	}
	return &Users{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (u *Users) userKey(id string) string {
	return u.prefix + ":user:" + id
}

func (u *Users) usernameKey(username string) string {
	return u.prefix + ":uname:" + username
}

func (u *Users) emailKey(email string) string {
	return u.prefix + ":email:" + email
}

// FindByID loads the full user record for id.
func (u *Users) FindByID(ctx context.Context, id string) (*accounts.User, error) {
	return u.loadUser(ctx, id)
}

// FindByUsernameOrEmail resolves identifier through the username index
// first, then the email index.
func (u *Users) FindByUsernameOrEmail(ctx context.Context, identifier string) (*accounts.User, error) {
	id, err := u.redis.Get(ctx, u.usernameKey(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		id, err = u.redis.Get(ctx, u.emailKey(identifier)).Result()
		if errors.Is(err, redis.Nil) {
			return nil, accounts.ErrUserNotFound
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}

	return u.loadUser(ctx, id)
}

// Create inserts a new user, enforcing username and email uniqueness
// atomically. Returns accounts.ErrDuplicateUser when either is taken.
func (u *Users) Create(ctx context.Context, input accounts.CreateUserInput) (*accounts.User, error) {
	id := uuid.NewString()
	createdAt := time.Now().UTC().Truncate(time.Second)

	result, err := createUserLua.Run(
		ctx,
		u.redis,
		[]string{
			u.usernameKey(input.Username),
			u.emailKey(input.Email),
			u.userKey(id),
		},
		id,
		input.Username,
		input.Email,
		input.FullName,
		input.PasswordHash,
		input.AvatarURL,
		input.CoverImageURL,
		createdAt.Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid create script response", accounts.ErrStoreUnavailable)
	}
	if code == createStatusDuplicate {
		return nil, accounts.ErrDuplicateUser
	}

	return &accounts.User{
		ID:            id,
		Username:      input.Username,
		Email:         input.Email,
		FullName:      input.FullName,
		PasswordHash:  input.PasswordHash,
		AvatarURL:     input.AvatarURL,
		CoverImageURL: input.CoverImageURL,
		CreatedAt:     createdAt,
	}, nil
}

// UpdateProfile applies the non-nil fields of update and returns the
// refreshed record.
func (u *Users) UpdateProfile(ctx context.Context, id string, update accounts.ProfileUpdate) (*accounts.User, error) {
	if err := u.ensureExists(ctx, id); err != nil {
		return nil, err
	}

	fields := make([]interface{}, 0, 4)
	if update.AvatarURL != nil {
		fields = append(fields, fieldAvatarURL, *update.AvatarURL)
	}
	if update.CoverImageURL != nil {
		fields = append(fields, fieldCoverURL, *update.CoverImageURL)
	}
	if len(fields) > 0 {
		if err := u.redis.HSet(ctx, u.userKey(id), fields...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
		}
	}

	return u.loadUser(ctx, id)
}

// UpdatePasswordHash replaces the stored password hash.
func (u *Users) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if err := u.ensureExists(ctx, id); err != nil {
		return err
	}

	if err := u.redis.HSet(ctx, u.userKey(id), fieldPasswordHash, hash).Err(); err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return nil
}

// SetRefreshToken unconditionally overwrites the stored refresh token.
func (u *Users) SetRefreshToken(ctx context.Context, id, token string) error {
	if err := u.ensureExists(ctx, id); err != nil {
		return err
	}

	if err := u.redis.HSet(ctx, u.userKey(id), fieldRefreshToken, token).Err(); err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return nil
}

// RotateRefreshToken swaps presented for next only when presented
// matches the stored value, as one atomic script.
func (u *Users) RotateRefreshToken(ctx context.Context, id, presented, next string) error {
	result, err := rotateRefreshLua.Run(
		ctx,
		u.redis,
		[]string{u.userKey(id)},
		presented,
		next,
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("%w: invalid rotate script response", accounts.ErrStoreUnavailable)
	}

	switch code {
	case rotateStatusNotFound:
		return accounts.ErrUserNotFound
	case rotateStatusMismatch:
		return accounts.ErrRefreshReuse
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unknown rotate script status %d", accounts.ErrStoreUnavailable, code)
	}
}

// ClearRefreshToken removes the stored refresh token.
func (u *Users) ClearRefreshToken(ctx context.Context, id string) error {
	if err := u.ensureExists(ctx, id); err != nil {
		return err
	}

	if err := u.redis.HDel(ctx, u.userKey(id), fieldRefreshToken).Err(); err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	return nil
}

func (u *Users) ensureExists(ctx context.Context, id string) error {
	exists, err := u.redis.Exists(ctx, u.userKey(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	if exists == 0 {
		return accounts.ErrUserNotFound
	}
	return nil
}

func (u *Users) loadUser(ctx context.Context, id string) (*accounts.User, error) {
	values, err := u.redis.HGetAll(ctx, u.userKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", accounts.ErrStoreUnavailable, err)
	}
	if len(values) == 0 {
		return nil, accounts.ErrUserNotFound
	}

	user := &accounts.User{
		ID:            id,
		Username:      values[fieldUsername],
		Email:         values[fieldEmail],
		FullName:      values[fieldFullName],
		PasswordHash:  values[fieldPasswordHash],
		AvatarURL:     values[fieldAvatarURL],
		CoverImageURL: values[fieldCoverURL],
		RefreshToken:  values[fieldRefreshToken],
	}

	if raw := values[fieldCreatedAt]; raw != "" {
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt created_at for user %s", accounts.ErrStoreUnavailable, id)
		}
		user.CreatedAt = time.Unix(unix, 0).UTC()
	}

	return user, nil
}
