package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRegisterCreatesSanitizedUser(t *testing.T) {
	f := newTestEngine(t)

	req := registerRequest()
	req.Username = "  Alice  "
	req.Email = "Alice@Example.COM"

	user, err := f.engine.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if user.Username != "alice" {
		t.Fatalf("username = %q, want normalized lowercase", user.Username)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q, want normalized lowercase", user.Email)
	}
	if user.ID == "" || user.CreatedAt.IsZero() {
		t.Fatalf("incomplete public user: %+v", user)
	}
	if !strings.HasPrefix(user.AvatarURL, "https://cdn.test/") {
		t.Fatalf("avatar URL = %q, want uploaded URL", user.AvatarURL)
	}
	if f.uploader.calls != 1 {
		t.Fatalf("upload calls = %d, want 1", f.uploader.calls)
	}

	// Stored hash must never be the plaintext password.
	stored, err := f.store.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if stored.PasswordHash == "" || strings.Contains(stored.PasswordHash, "hunter22") {
		t.Fatalf("password stored unsafely: %q", stored.PasswordHash)
	}

	if got := f.engine.Metrics().Value(MetricRegisterSuccess); got != 1 {
		t.Fatalf("register success counter = %d, want 1", got)
	}
}

func TestRegisterUploadsCoverImageWhenPresent(t *testing.T) {
	f := newTestEngine(t)

	req := registerRequest()
	req.CoverImage = &FileRef{Name: "cover.png", Reader: strings.NewReader("cover-bytes")}

	user, err := f.engine.Register(context.Background(), req)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.CoverImageURL != "https://cdn.test/cover.png" {
		t.Fatalf("cover URL = %q", user.CoverImageURL)
	}
	if f.uploader.calls != 2 {
		t.Fatalf("upload calls = %d, want 2", f.uploader.calls)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)

	req := registerRequest()
	req.Avatar = avatarFile()
	_, err := f.engine.Register(context.Background(), req)
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if got := HTTPStatus(err); got != 409 {
		t.Fatalf("HTTPStatus = %d, want 409", got)
	}
	if got := f.engine.Metrics().Value(MetricRegisterDuplicate); got != 1 {
		t.Fatalf("duplicate counter = %d, want 1", got)
	}
}

func TestRegisterDuplicateWinsOverMissingAvatar(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)

	// A taken username is a conflict even when the avatar is absent.
	req := registerRequest()
	req.Email = "other@example.com"
	req.Avatar = nil
	_, err := f.engine.Register(context.Background(), req)
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if got := HTTPStatus(err); got != 409 {
		t.Fatalf("HTTPStatus = %d, want 409", got)
	}
}

func TestRegisterDuplicateSkipsUpload(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)

	// Duplicate email under a fresh username. The conflict is detected
	// before any file leaves the process.
	req := registerRequest()
	req.Username = "alice2"
	_, err := f.engine.Register(context.Background(), req)
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if f.uploader.calls != 1 {
		t.Fatalf("upload calls = %d, want 1", f.uploader.calls)
	}
}

func TestRegisterRequiresAvatar(t *testing.T) {
	f := newTestEngine(t)

	req := registerRequest()
	req.Avatar = nil
	_, err := f.engine.Register(context.Background(), req)
	if !errors.Is(err, ErrAvatarRequired) {
		t.Fatalf("expected ErrAvatarRequired, got %v", err)
	}
	if got := HTTPStatus(err); got != 400 {
		t.Fatalf("HTTPStatus = %d, want 400", got)
	}
}

func TestRegisterEnforcesPasswordPolicy(t *testing.T) {
	f := newTestEngine(t)

	req := registerRequest()
	req.Password = "abc"
	_, err := f.engine.Register(context.Background(), req)
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("expected ErrPasswordPolicy, got %v", err)
	}
}

func TestRegisterUploadFailure(t *testing.T) {
	f := newTestEngine(t)
	f.uploader.fail = errors.New("bucket offline")

	_, err := f.engine.Register(context.Background(), registerRequest())
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	if got := f.engine.Metrics().Value(MetricRegisterUploadFailure); got != 1 {
		t.Fatalf("upload failure counter = %d, want 1", got)
	}

	// Nothing must be persisted when the upload fails.
	if _, err := f.store.FindByUsernameOrEmail(context.Background(), "alice"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("user persisted despite upload failure: %v", err)
	}
}

func TestLoginWithUsernameAndEmail(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)

	byUsername := mustLogin(t, f, "alice", "hunter22")
	if byUsername.User.ID != registered.ID {
		t.Fatalf("login resolved %q, want %q", byUsername.User.ID, registered.ID)
	}
	if byUsername.AccessToken == "" || byUsername.RefreshToken == "" {
		t.Fatal("expected a full token pair")
	}

	// Identifier is case-normalized, so the email works in any casing.
	byEmail := mustLogin(t, f, "Alice@Example.com", "hunter22")
	if byEmail.User.ID != registered.ID {
		t.Fatalf("email login resolved %q, want %q", byEmail.User.ID, registered.ID)
	}

	if got := f.engine.Metrics().Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success counter = %d, want 2", got)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)

	_, wrongPassword := f.engine.Login(context.Background(), Credentials{
		Identifier: "alice",
		Password:   "not-the-password",
	})
	if !errors.Is(wrongPassword, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", wrongPassword)
	}

	_, unknownUser := f.engine.Login(context.Background(), Credentials{
		Identifier: "nobody",
		Password:   "whatever",
	})
	if !errors.Is(unknownUser, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", unknownUser)
	}

	// Both map to the same status so the API cannot be used to probe
	// for account existence.
	if HTTPStatus(wrongPassword) != HTTPStatus(unknownUser) {
		t.Fatalf("statuses differ: %d vs %d", HTTPStatus(wrongPassword), HTTPStatus(unknownUser))
	}
	if got := f.engine.Metrics().Value(MetricLoginFailure); got != 2 {
		t.Fatalf("login failure counter = %d, want 2", got)
	}
}

func TestLoginStoreFailurePassesThrough(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)

	f.store.findErr = fmt.Errorf("%w: connection reset", ErrStoreUnavailable)

	_, err := f.engine.Login(context.Background(), Credentials{Identifier: "alice", Password: "hunter22"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := HTTPStatus(err); got != 500 {
		t.Fatalf("HTTPStatus = %d, want 500", got)
	}
}

func TestRegisterStoreFailurePassesThrough(t *testing.T) {
	f := newTestEngine(t)
	f.store.createErr = fmt.Errorf("%w: connection reset", ErrStoreUnavailable)

	_, err := f.engine.Register(context.Background(), registerRequest())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if got := HTTPStatus(err); got != 500 {
		t.Fatalf("HTTPStatus = %d, want 500", got)
	}
}

func TestSecondLoginReplacesRefreshToken(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)

	first := mustLogin(t, f, "alice", "hunter22")
	second := mustLogin(t, f, "alice", "hunter22")

	if first.RefreshToken == second.RefreshToken {
		t.Fatal("each login must issue a distinct refresh token")
	}
	if stored := f.store.storedRefresh(registered.ID); stored != second.RefreshToken {
		t.Fatal("stored refresh token should be the most recent login's")
	}

	// The first session's refresh token was rotated out by the second
	// login and must now be rejected.
	if _, err := f.engine.Refresh(context.Background(), first.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("expected ErrRefreshReuse for replaced token, got %v", err)
	}
}

func TestRefreshRotatesTokenPair(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	rotated, err := f.engine.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if rotated.User.ID != registered.ID {
		t.Fatalf("refresh resolved %q, want %q", rotated.User.ID, registered.ID)
	}
	if rotated.RefreshToken == login.RefreshToken {
		t.Fatal("refresh must issue a new refresh token")
	}
	if rotated.AccessToken == "" {
		t.Fatal("refresh must issue a new access token")
	}
	if stored := f.store.storedRefresh(registered.ID); stored != rotated.RefreshToken {
		t.Fatal("store must hold the rotated token")
	}

	// The presented token is single-use.
	_, err = f.engine.Refresh(context.Background(), login.RefreshToken)
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("replay: expected ErrRefreshReuse, got %v", err)
	}
	if got := HTTPStatus(err); got != 403 {
		t.Fatalf("HTTPStatus = %d, want 403", got)
	}
	if got := f.engine.Metrics().Value(MetricRefreshReuseDetected); got != 1 {
		t.Fatalf("reuse counter = %d, want 1", got)
	}

	// Replay detection must not invalidate the legitimate token.
	if _, err := f.engine.Refresh(context.Background(), rotated.RefreshToken); err != nil {
		t.Fatalf("legitimate rotated token rejected: %v", err)
	}
}

func TestConsecutiveRefreshes(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	current := login.RefreshToken
	seen := map[string]bool{current: true}
	for i := 0; i < 5; i++ {
		result, err := f.engine.Refresh(context.Background(), current)
		if err != nil {
			t.Fatalf("refresh %d: %v", i+1, err)
		}
		if seen[result.RefreshToken] {
			t.Fatalf("refresh %d reissued a previous token", i+1)
		}
		seen[result.RefreshToken] = true
		current = result.RefreshToken
	}

	if got := f.engine.Metrics().Value(MetricRefreshSuccess); got != 5 {
		t.Fatalf("refresh success counter = %d, want 5", got)
	}
}

func TestRefreshStoreFailureLeavesTokenUsable(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	f.store.findErr = fmt.Errorf("%w: read timeout", ErrStoreUnavailable)
	_, err := f.engine.Refresh(context.Background(), login.RefreshToken)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	f.store.findErr = nil

	// The failed attempt must not have rotated the stored token; the
	// caller retries with the pair it already holds.
	result, err := f.engine.Refresh(context.Background(), login.RefreshToken)
	if err != nil {
		t.Fatalf("refresh after store recovery: %v", err)
	}
	if result.RefreshToken == login.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newTestEngine(t)
	mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	_, err := f.engine.Refresh(context.Background(), login.AccessToken)
	if !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for access token, got %v", err)
	}

	_, err = f.engine.Refresh(context.Background(), "garbage")
	if !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid for garbage, got %v", err)
	}
	if got := HTTPStatus(err); got != 401 {
		t.Fatalf("HTTPStatus = %d, want 401", got)
	}
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	if err := f.engine.Logout(context.Background(), registered.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	_, err := f.engine.Refresh(context.Background(), login.RefreshToken)
	if !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("refresh after logout: expected ErrRefreshReuse, got %v", err)
	}

	// Logout is idempotent, even for unknown users.
	if err := f.engine.Logout(context.Background(), registered.ID); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := f.engine.Logout(context.Background(), "ghost"); err != nil {
		t.Fatalf("Logout of unknown user: %v", err)
	}

	// Access tokens stay valid until expiry; logout only touches the
	// refresh side.
	if _, err := f.engine.Authenticate(context.Background(), login.AccessToken); err != nil {
		t.Fatalf("access token after logout: %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)

	err := f.engine.ChangePassword(context.Background(), registered.ID, "hunter22", "correct-horse")
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	// Old password stops working, new one works.
	if _, err := f.engine.Login(context.Background(), Credentials{Identifier: "alice", Password: "hunter22"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password still accepted: %v", err)
	}
	mustLogin(t, f, "alice", "correct-horse")

	if got := f.engine.Metrics().Value(MetricPasswordChangeSuccess); got != 1 {
		t.Fatalf("password change counter = %d, want 1", got)
	}
}

func TestChangePasswordInvalidatesSessions(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	if err := f.engine.ChangePassword(context.Background(), registered.ID, "hunter22", "correct-horse"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := f.engine.Refresh(context.Background(), login.RefreshToken); !errors.Is(err, ErrRefreshReuse) {
		t.Fatalf("refresh after password change: expected ErrRefreshReuse, got %v", err)
	}
}

func TestChangePasswordKeepsSessionsWhenConfigured(t *testing.T) {
	f := newTestEngine(t, func(cfg *Config) {
		cfg.Password.InvalidateSessionsOnChange = false
	})
	registered := mustRegister(t, f)
	login := mustLogin(t, f, "alice", "hunter22")

	if err := f.engine.ChangePassword(context.Background(), registered.ID, "hunter22", "correct-horse"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, err := f.engine.Refresh(context.Background(), login.RefreshToken); err != nil {
		t.Fatalf("refresh should survive password change: %v", err)
	}
}

func TestChangePasswordRejections(t *testing.T) {
	f := newTestEngine(t)
	registered := mustRegister(t, f)

	err := f.engine.ChangePassword(context.Background(), registered.ID, "wrong-current", "correct-horse")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong current password: expected ErrInvalidCredentials, got %v", err)
	}
	if got := f.engine.Metrics().Value(MetricPasswordChangeInvalidCurrent); got != 1 {
		t.Fatalf("invalid current counter = %d, want 1", got)
	}

	err = f.engine.ChangePassword(context.Background(), registered.ID, "hunter22", "abc")
	if !errors.Is(err, ErrPasswordPolicy) {
		t.Fatalf("short new password: expected ErrPasswordPolicy, got %v", err)
	}

	err = f.engine.ChangePassword(context.Background(), "ghost", "hunter22", "correct-horse")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("unknown user: expected ErrUserNotFound, got %v", err)
	}
}

func TestLoginRateLimiting(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testEngineConfig()
	cfg.Security = SecurityConfig{
		EnableLoginThrottle:   true,
		MaxLoginAttempts:      2,
		LoginCooldownDuration: time.Minute,
	}

	store := newMemStore()
	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(store).
		WithUploader(&memUploader{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if _, err := engine.Register(ctx, registerRequest()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	bad := Credentials{Identifier: "alice", Password: "wrong"}
	for i := 0; i < 3; i++ {
		if _, err := engine.Login(ctx, bad); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	// Budget exhausted: even the correct password is throttled now.
	_, err = engine.Login(ctx, Credentials{Identifier: "alice", Password: "hunter22"})
	if !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if got := HTTPStatus(err); got != 429 {
		t.Fatalf("HTTPStatus = %d, want 429", got)
	}

	// A fresh window restores access and a successful login resets the
	// counters.
	mr.FastForward(2 * time.Minute)
	if _, err := engine.Login(ctx, Credentials{Identifier: "alice", Password: "hunter22"}); err != nil {
		t.Fatalf("login after cooldown: %v", err)
	}
	if _, err := engine.Login(ctx, Credentials{Identifier: "alice", Password: "hunter22"}); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestRefreshRateLimiting(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := testEngineConfig()
	cfg.Security = SecurityConfig{
		EnableRefreshThrottle:   true,
		MaxRefreshAttempts:      2,
		RefreshCooldownDuration: time.Minute,
	}

	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(newMemStore()).
		WithUploader(&memUploader{}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	if _, err := engine.Register(ctx, registerRequest()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	login, err := engine.Login(ctx, Credentials{Identifier: "alice", Password: "hunter22"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	current := login.RefreshToken
	for i := 0; i < 2; i++ {
		result, err := engine.Refresh(ctx, current)
		if err != nil {
			t.Fatalf("refresh %d: %v", i+1, err)
		}
		current = result.RefreshToken
	}

	_, err = engine.Refresh(ctx, current)
	if !errors.Is(err, ErrRefreshRateLimited) {
		t.Fatalf("expected ErrRefreshRateLimited, got %v", err)
	}

	// The throttled attempt must not have consumed the token.
	mr.FastForward(2 * time.Minute)
	if _, err := engine.Refresh(ctx, current); err != nil {
		t.Fatalf("refresh after cooldown: %v", err)
	}
}
