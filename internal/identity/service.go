package identity

import (
    "context"
    "errors"
    "fmt"
    "net/mail"
    "strings"
    "time"

    "github.com/google/uuid"
    "golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// AccountProvisioner opens the coin account that backs every user.
type AccountProvisioner interface {
    EnsureAccount(ctx context.Context, id, role string) error
}

// Service manages identity lifecycle.
type Service struct {
    repo     Repository
    accounts AccountProvisioner
    now      func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, accounts AccountProvisioner) *Service {
    return &Service{repo: repo, accounts: accounts, now: func() time.Time { return time.Now().UTC() }}
}

// Register creates a user with a hashed password and opens its coin account
// with a zero balance.
func (s *Service) Register(ctx context.Context, in Signup) (User, error) {
    email := strings.ToLower(strings.TrimSpace(in.Email))
    if _, err := mail.ParseAddress(email); err != nil {
        return User{}, fmt.Errorf("%w: invalid email", ErrInvalidSignup)
    }
    if len(in.Password) < minPasswordLength {
        return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidSignup, minPasswordLength)
    }
    if !validRole(in.Role) {
        return User{}, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
    }

    hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
    if err != nil {
        return User{}, err
    }

    user := User{
        ID:           uuid.New().String(),
        Email:        email,
        Name:         strings.TrimSpace(in.Name),
        Role:         in.Role,
        Mobile:       strings.TrimSpace(in.Mobile),
        PasswordHash: hash,
        CreatedAt:    s.now(),
    }

    if err := s.repo.Create(ctx, user); err != nil {
        return User{}, err
    }
    if s.accounts != nil {
        if err := s.accounts.EnsureAccount(ctx, user.ID, user.Role); err != nil {
            return User{}, fmt.Errorf("open coin account: %w", err)
        }
    }

    return user, nil
}

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (User, error) {
    user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(creds.Email)))
    if err != nil {
        if errors.Is(err, ErrUserNotFound) {
            return User{}, ErrInvalidCredentials
        }
        return User{}, err
    }

    if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(creds.Password)); err != nil {
        return User{}, ErrInvalidCredentials
    }

    now := s.now()
    if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
        return User{}, err
    }
    user.LastLogin = &now

    return user, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
    return s.repo.FindByID(ctx, id)
}
