package accounts

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// memStore is an in-memory UserStore with the same semantics as the
// Redis implementation, including compare-and-set refresh rotation.
type memStore struct {
	mu         sync.Mutex
	seq        int
	byID       map[string]*User
	byUsername map[string]string
	byEmail    map[string]string
	refresh    map[string]string

	findErr   error
	createErr error
}

func newMemStore() *memStore {
	return &memStore{
		byID:       make(map[string]*User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
		refresh:    make(map[string]string),
	}
}

func (s *memStore) FindByID(ctx context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findErr != nil {
		return nil, s.findErr
	}
	user, ok := s.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *user
	out.RefreshToken = s.refresh[id]
	return &out, nil
}

func (s *memStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*User, error) {
	s.mu.Lock()
	id, ok := s.byUsername[identifier]
	if !ok {
		id, ok = s.byEmail[identifier]
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.FindByID(ctx, id)
}

func (s *memStore) Create(ctx context.Context, input CreateUserInput) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return nil, s.createErr
	}
	if _, taken := s.byUsername[input.Username]; taken {
		return nil, ErrDuplicateUser
	}
	if _, taken := s.byEmail[input.Email]; taken {
		return nil, ErrDuplicateUser
	}

	s.seq++
	user := &User{
		ID:            fmt.Sprintf("user-%d", s.seq),
		Username:      input.Username,
		Email:         input.Email,
		FullName:      input.FullName,
		PasswordHash:  input.PasswordHash,
		AvatarURL:     input.AvatarURL,
		CoverImageURL: input.CoverImageURL,
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
	s.byID[user.ID] = user
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID

	out := *user
	return &out, nil
}

func (s *memStore) UpdateProfile(ctx context.Context, id string, update ProfileUpdate) (*User, error) {
	s.mu.Lock()
	user, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return nil, ErrUserNotFound
	}
	if update.AvatarURL != nil {
		user.AvatarURL = *update.AvatarURL
	}
	if update.CoverImageURL != nil {
		user.CoverImageURL = *update.CoverImageURL
	}
	s.mu.Unlock()
	return s.FindByID(ctx, id)
}

func (s *memStore) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = hash
	return nil
}

func (s *memStore) SetRefreshToken(ctx context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrUserNotFound
	}
	s.refresh[id] = token
	return nil
}

func (s *memStore) RotateRefreshToken(ctx context.Context, id, presented, next string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrUserNotFound
	}
	stored, ok := s.refresh[id]
	if !ok || stored != presented {
		return ErrRefreshReuse
	}
	s.refresh[id] = next
	return nil
}

func (s *memStore) ClearRefreshToken(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[id]; !ok {
		return ErrUserNotFound
	}
	delete(s.refresh, id)
	return nil
}

func (s *memStore) storedRefresh(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh[id]
}

// memSubs is an in-memory SubscriptionStore.
type memSubs struct {
	mu          sync.Mutex
	subscribers map[string]map[string]bool
	subscribed  map[string]map[string]bool
}

func newMemSubs() *memSubs {
	return &memSubs{
		subscribers: make(map[string]map[string]bool),
		subscribed:  make(map[string]map[string]bool),
	}
}

func (s *memSubs) Subscribe(ctx context.Context, channelID, subscriberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subscribers[channelID] == nil {
		s.subscribers[channelID] = make(map[string]bool)
	}
	if s.subscribed[subscriberID] == nil {
		s.subscribed[subscriberID] = make(map[string]bool)
	}
	s.subscribers[channelID][subscriberID] = true
	s.subscribed[subscriberID][channelID] = true
	return nil
}

func (s *memSubs) Unsubscribe(ctx context.Context, channelID, subscriberID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subscribers[channelID], subscriberID)
	delete(s.subscribed[subscriberID], channelID)
	return nil
}

func (s *memSubs) CountSubscribers(ctx context.Context, channelID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.subscribers[channelID])), nil
}

func (s *memSubs) CountSubscribedTo(ctx context.Context, subscriberID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.subscribed[subscriberID])), nil
}

func (s *memSubs) IsSubscriber(ctx context.Context, channelID, subscriberID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribers[channelID][subscriberID], nil
}

// memUploader returns deterministic URLs and supports error injection.
type memUploader struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (u *memUploader) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.fail != nil {
		return "", u.fail
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	u.calls++
	return "https://cdn.test/" + name, nil
}

func testEngineConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.AccessSecret = []byte("engine-test-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("engine-test-refresh-secret-0123456789")

	// Cheap hashing keeps the suite fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	cfg.Security = SecurityConfig{}
	return cfg
}

type engineFixture struct {
	engine   *Engine
	store    *memStore
	subs     *memSubs
	uploader *memUploader
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) *engineFixture {
	t.Helper()

	cfg := testEngineConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}

	f := &engineFixture{
		store:    newMemStore(),
		subs:     newMemSubs(),
		uploader: &memUploader{},
	}

	engine, err := New().
		WithConfig(cfg).
		WithUserStore(f.store).
		WithSubscriptions(f.subs).
		WithUploader(f.uploader).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)

	f.engine = engine
	return f
}

func avatarFile() *FileRef {
	return &FileRef{Name: "avatar.png", Reader: strings.NewReader("png-bytes")}
}

func registerRequest() RegisterRequest {
	return RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
		Password: "hunter22",
		Avatar:   avatarFile(),
	}
}

func mustRegister(t *testing.T, f *engineFixture) PublicUser {
	t.Helper()
	user, err := f.engine.Register(context.Background(), registerRequest())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return user
}

func mustLogin(t *testing.T, f *engineFixture, identifier, password string) *LoginResult {
	t.Helper()
	result, err := f.engine.Login(context.Background(), Credentials{
		Identifier: identifier,
		Password:   password,
	})
	if err != nil {
		t.Fatalf("Login(%q): %v", identifier, err)
	}
	return result
}
