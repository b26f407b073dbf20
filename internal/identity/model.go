package identity

import (
    "errors"
    "time"
)

var (
    ErrUserExists         = errors.New("email already registered")
    ErrUserNotFound       = errors.New("user not found")
    ErrInvalidCredentials = errors.New("invalid credentials")
    ErrInvalidRole        = errors.New("invalid role")
    ErrInvalidSignup      = errors.New("invalid signup")
)

// Roles recognised by the marketplace.
const (
    RoleStudent  = "student"
    RoleParent   = "parent"
    RoleTutor    = "tutor"
    RoleCoaching = "coaching"
    RoleCompany  = "company"
)

// User represents a registered marketplace member. The user id doubles as the
// ledger account id.
type User struct {
    ID           string
    Email        string
    Name         string
    Role         string
    Mobile       string
    PasswordHash []byte
    TokenVersion int
    CreatedAt    time.Time
    LastLogin    *time.Time
}

// Signup request structure.
type Signup struct {
    Email    string
    Password string
    Name     string
    Role     string
    Mobile   string
}

// Credentials request structure.
type Credentials struct {
    Email    string
    Password string
}

func validRole(role string) bool {
    switch role {
    case RoleStudent, RoleParent, RoleTutor, RoleCoaching, RoleCompany:
        return true
    }
    return false
}
