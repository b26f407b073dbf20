package identity

import (
    "context"
    "errors"
    "testing"

    "github.com/tutorconnect/coin_ledger/internal/ledger"
)

func TestRegisterOpensZeroBalanceAccount(t *testing.T) {
    led := ledger.NewInMemory()
    svc := NewService(NewMemoryRepository(), led)

    ctx := context.Background()
    user, err := svc.Register(ctx, Signup{Email: "Asha@Example.com", Password: "secret1", Name: "Asha", Role: RoleStudent})
    if err != nil {
        t.Fatalf("register: %v", err)
    }
    if user.Email != "asha@example.com" {
        t.Fatalf("expected normalised email, got %s", user.Email)
    }

    acc, err := led.Account(ctx, user.ID)
    if err != nil {
        t.Fatalf("account: %v", err)
    }
    if acc.Balance != 0 || acc.Role != RoleStudent || !acc.Active {
        t.Fatalf("unexpected account %+v", acc)
    }
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
    svc := NewService(NewMemoryRepository(), ledger.NewInMemory())
    ctx := context.Background()

    if _, err := svc.Register(ctx, Signup{Email: "a@b.co", Password: "secret1", Role: RoleTutor}); err != nil {
        t.Fatalf("register: %v", err)
    }
    if _, err := svc.Register(ctx, Signup{Email: "A@b.co", Password: "secret2", Role: RoleTutor}); !errors.Is(err, ErrUserExists) {
        t.Fatalf("expected ErrUserExists, got %v", err)
    }
}

func TestRegisterValidation(t *testing.T) {
    tests := []struct {
        name string
        in   Signup
        want error
    }{
        {"bad email", Signup{Email: "nope", Password: "secret1", Role: RoleStudent}, ErrInvalidSignup},
        {"short password", Signup{Email: "a@b.co", Password: "123", Role: RoleStudent}, ErrInvalidSignup},
        {"unknown role", Signup{Email: "a@b.co", Password: "secret1", Role: "admin"}, ErrInvalidRole},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            svc := NewService(NewMemoryRepository(), nil)
            if _, err := svc.Register(context.Background(), tt.in); !errors.Is(err, tt.want) {
                t.Fatalf("expected %v, got %v", tt.want, err)
            }
        })
    }
}

func TestAuthenticate(t *testing.T) {
    repo := NewMemoryRepository()
    svc := NewService(repo, nil)
    ctx := context.Background()

    user, err := svc.Register(ctx, Signup{Email: "a@b.co", Password: "secret1", Role: RoleParent})
    if err != nil {
        t.Fatalf("register: %v", err)
    }

    authed, err := svc.Authenticate(ctx, Credentials{Email: "a@b.co", Password: "secret1"})
    if err != nil {
        t.Fatalf("authenticate: %v", err)
    }
    if authed.ID != user.ID || authed.LastLogin == nil {
        t.Fatalf("expected login to be recorded, got %+v", authed)
    }
    stored, _ := repo.FindByID(ctx, user.ID)
    if stored.LastLogin == nil {
        t.Fatalf("expected last login to be persisted")
    }

    if _, err := svc.Authenticate(ctx, Credentials{Email: "a@b.co", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected ErrInvalidCredentials, got %v", err)
    }
    if _, err := svc.Authenticate(ctx, Credentials{Email: "ghost@b.co", Password: "secret1"}); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected ErrInvalidCredentials for unknown email, got %v", err)
    }
}
