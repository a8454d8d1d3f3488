package devauth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUsernameTaken         = errors.New("username already taken")
	ErrEmailAlreadyInUse     = errors.New("email already registered")
	ErrUserNotFound          = errors.New("user not found")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountNotVerified    = errors.New("account is not verified")
	ErrAlreadyVerified       = errors.New("this account has already been verified")
	ErrInvalidVerification   = errors.New("invalid verification token")
	ErrVerificationExpired   = errors.New("verification token has expired, please request a new one")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrRefreshTokenExpired   = errors.New("refresh token has expired, please log in again")
	ErrInvalidAccessToken    = errors.New("invalid or expired access token")
	ErrUnknownCountry        = errors.New("invalid country id")
	ErrMissingBearerToken    = errors.New("bearer token is missing or malformed")
	ErrCurrentPasswordWrong  = errors.New("current password is incorrect")
	ErrPasswordsDoNotMatch   = errors.New("new password and confirmation do not match")
	ErrEmailTakenByOtherUser = errors.New("email is used by another account")
)

// User is an account of the dev API
type User struct {
	ID           uuid.UUID
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	PhoneNumber  string
	DateFormat   string
	CountryID    int64
	Active       bool

	VerificationCode   string
	VerificationExpiry time.Time

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RefreshToken is the stored side of an opaque refresh token. Only the
// sha256 hash of the token is kept.
type RefreshToken struct {
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
}

type UserRepository interface {
	Save(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	// FindByIdentifier looks a user up by username, then by email
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
}

type TokenRepository interface {
	Save(ctx context.Context, token *RefreshToken) error
	// Revoke deletes the token and returns it, proving it existed
	Revoke(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// Notifier delivers verification codes. The dev API logs them.
type Notifier interface {
	SendVerification(ctx context.Context, email, code string) error
}

// TokenPair is what login, verify and refresh return
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Countries known to the dev API, by id
var Countries = map[int64]string{
	1: "Morocco",
	2: "France",
	3: "United States",
	4: "Brazil",
}
