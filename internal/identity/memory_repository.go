package identity

import (
    "context"
    "sync"
    "time"
)

type memoryRepository struct {
    mu      sync.RWMutex
    users   map[string]User
    byEmail map[string]string
}

// NewMemoryRepository builds an in-memory user store for testing.
func NewMemoryRepository() Repository {
    return &memoryRepository{users: make(map[string]User), byEmail: make(map[string]string)}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    if _, exists := r.byEmail[user.Email]; exists {
        return ErrUserExists
    }
    r.users[user.ID] = user
    r.byEmail[user.Email] = user.ID
    return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    id, ok := r.byEmail[email]
    if !ok {
        return User{}, ErrUserNotFound
    }
    return r.users[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
    r.mu.RLock()
    defer r.mu.RUnlock()
    user, ok := r.users[id]
    if !ok {
        return User{}, ErrUserNotFound
    }
    return user, nil
}

func (r *memoryRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
    return r.update(id, func(u *User) {
        t := at.UTC()
        u.LastLogin = &t
    })
}

func (r *memoryRepository) UpdateTokenVersion(_ context.Context, id string, version int) error {
    return r.update(id, func(u *User) { u.TokenVersion = version })
}

func (r *memoryRepository) update(id string, fn func(*User)) error {
    r.mu.Lock()
    defer r.mu.Unlock()
    user, ok := r.users[id]
    if !ok {
        return ErrUserNotFound
    }
    fn(&user)
    r.users[id] = user
    return nil
}
