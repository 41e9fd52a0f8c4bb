package auth

import (
	"context"
	"sync"
	"time"

	"github.com/frahmantamala/hrms-identity/internal/user"
)

type fakeUserRepository struct {
	mu      sync.Mutex
	users   map[string]*user.Identity
	nextID  int64
	creates int
	findErr error
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: map[string]*user.Identity{}}
}

func (f *fakeUserRepository) FindByUsername(_ context.Context, username string) (*user.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepository) ExistsByUsername(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.users[username]
	return ok, nil
}

func (f *fakeUserRepository) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeUserRepository) Create(_ context.Context, identity *user.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[identity.Username]; ok {
		return user.ErrDuplicateUsername
	}
	for _, u := range f.users {
		if u.Email == identity.Email {
			return user.ErrDuplicateEmail
		}
	}
	f.nextID++
	f.creates++
	identity.ID = f.nextID
	identity.Roles = user.NormalizeRoles(identity.Roles)
	cp := *identity
	f.users[identity.Username] = &cp
	return nil
}

func (f *fakeUserRepository) UpdatePassword(_ context.Context, username, hash string, credentialsNonExpired bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return user.ErrNotFound
	}
	u.PasswordHash = hash
	u.CredentialsNonExpired = credentialsNonExpired
	return nil
}

func (f *fakeUserRepository) mutate(username string, fn func(*user.Identity)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f.users[username])
}

func (f *fakeUserRepository) remove(username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, username)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
