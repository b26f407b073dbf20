package auth

import (
    "context"
    "errors"
    "time"

    "github.com/tutorconnect/coin_ledger/internal/config"
    "github.com/tutorconnect/coin_ledger/internal/identity"
)

// ErrTokenRevoked is returned for tokens issued before the latest logout.
var ErrTokenRevoked = errors.New("token revoked")

type Service struct {
    cfg    config.Config
    idRepo identity.Repository
    now    func() time.Time
}

func NewService(cfg config.Config, idRepo identity.Repository) *Service {
    return &Service{cfg: cfg, idRepo: idRepo, now: time.Now}
}

// Token is a signed access token.
type Token struct {
    AccessToken string    `json:"token"`
    ExpiresAt   time.Time `json:"expires_at"`
}

// Issue signs an access token for the user.
func (s *Service) Issue(user identity.User) (Token, error) {
    now := s.now()
    exp := now.Add(s.cfg.TokenTTL)
    signed, err := SignHS256(Claims{
        UserID:    user.ID,
        Email:     user.Email,
        Role:      user.Role,
        Version:   user.TokenVersion,
        IssuedAt:  now.Unix(),
        ExpiresAt: exp.Unix(),
    }, []byte(s.cfg.JWTSecret))
    if err != nil {
        return Token{}, err
    }
    return Token{AccessToken: signed, ExpiresAt: exp.UTC()}, nil
}

// Verify checks the token and that its user still exists with the same token version.
func (s *Service) Verify(ctx context.Context, token string) (identity.User, error) {
    claims, err := ParseAndVerifyHS256(token, []byte(s.cfg.JWTSecret), s.now())
    if err != nil {
        return identity.User{}, err
    }
    user, err := s.idRepo.FindByID(ctx, claims.UserID)
    if err != nil {
        return identity.User{}, err
    }
    if user.TokenVersion != claims.Version {
        return identity.User{}, ErrTokenRevoked
    }
    return user, nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, userID string) error {
    user, err := s.idRepo.FindByID(ctx, userID)
    if err != nil {
        return err
    }
    return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}
